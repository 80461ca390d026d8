// Package heuristic implements the deterministic, allocation-light
// sentiment/topic/urgency classifier that backs the race orchestrator's
// fallback path. It performs no I/O and must not fail for any input text.
package heuristic

import (
	"math"
	"regexp"
	"strings"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
)

const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
	urgentCompound    = -0.6

	// negationWindow is how many preceding tokens are checked for a
	// negation word when scoring a sentiment-bearing token.
	negationWindow = 3
	negationShift  = -0.74

	// alpha is VADER's normalization constant for squashing an unbounded
	// sum of token valences into roughly [-1, 1].
	alpha = 15.0
)

var wordSplit = regexp.MustCompile(`[A-Za-z0-9']+|[!?]+`)

// Result is the heuristic analyzer's pure-function output.
type Result struct {
	Sentiment       feedback.Sentiment
	Topics          []string
	IsUrgent        bool
	ConfidenceScore float64
	AIProvider      feedback.AIProvider
	Compound        float64
}

// Analyze runs sentiment, topic, and urgency detection over text and
// always succeeds — there is no error return because there is no failure
// mode: the function touches no external resource and every branch has a
// defined default.
func Analyze(text string) Result {
	compound := compoundScore(text)
	sentiment := classifySentiment(compound)
	topics := extractTopics(text)
	urgent := detectUrgency(text, sentiment, compound)

	return Result{
		Sentiment:       sentiment,
		Topics:          topics,
		IsUrgent:        urgent,
		ConfidenceScore: 0.5,
		AIProvider:      feedback.ProviderHeuristic,
		Compound:        compound,
	}
}

func classifySentiment(compound float64) feedback.Sentiment {
	switch {
	case compound >= positiveThreshold:
		return feedback.SentimentPositive
	case compound <= negativeThreshold:
		return feedback.SentimentNegative
	default:
		return feedback.SentimentNeutral
	}
}

// compoundScore is a trimmed port of VADER's compound-score computation:
// per-token lexicon lookup, negation flips, booster-word intensification,
// ALL-CAPS emphasis, and exclamation-mark emphasis, summed and then
// squashed into [-1, 1].
func compoundScore(text string) float64 {
	tokens := wordSplit.FindAllString(text, -1)
	if len(tokens) == 0 {
		return 0
	}

	allCaps := isShouting(tokens)

	var sum float64
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		base, ok := valence[lower]
		if !ok {
			continue
		}
		// Scale the raw VADER mean-valence (~[-4,4]) into our working band.
		score := base / 4.0

		if negatedBefore(tokens, i) {
			score *= negationShift
		}

		if boost := boosterBefore(tokens, i); boost != 0 {
			if score >= 0 {
				score += boost
			} else {
				score -= boost
			}
		}

		if allCaps && tok == strings.ToUpper(tok) && len(tok) > 1 {
			if score > 0 {
				score += 0.733
			} else if score < 0 {
				score -= 0.733
			}
		}

		sum += score
	}

	if emph := exclamationEmphasis(text); sum > 0 {
		sum += emph
	} else if sum < 0 {
		sum -= emph
	}

	return normalize(sum)
}

func normalize(sum float64) float64 {
	norm := sum / math.Sqrt(sum*sum+alpha)
	if norm > 1 {
		return 1
	}
	if norm < -1 {
		return -1
	}
	return norm
}

// isShouting reports whether the text is not itself entirely capitalized —
// VADER only credits per-word ALL-CAPS emphasis when the whole sentence
// isn't already shouting.
func isShouting(tokens []string) bool {
	upperWords := 0
	letterWords := 0
	for _, t := range tokens {
		if !hasLetter(t) {
			continue
		}
		letterWords++
		if t == strings.ToUpper(t) {
			upperWords++
		}
	}
	return letterWords > 0 && upperWords < letterWords
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func negatedBefore(tokens []string, idx int) bool {
	start := idx - negationWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < idx; i++ {
		w := strings.ToLower(strings.ReplaceAll(tokens[i], "'", ""))
		if negationWords[w] {
			return true
		}
	}
	return false
}

func boosterBefore(tokens []string, idx int) float64 {
	if idx == 0 {
		return 0
	}
	prev := strings.ToLower(tokens[idx-1])
	return boosterWords[prev]
}

// exclamationEmphasis adds a fixed boost per '!' (capped at 4), mirroring
// VADER's punctuation-emphasis rule. It nudges whatever sum precedes it
// further from neutral rather than flipping sign.
func exclamationEmphasis(text string) float64 {
	count := strings.Count(text, "!")
	if count > 4 {
		count = 4
	}
	return float64(count) * 0.292
}

// extractTopics returns every topic category with at least one
// case-insensitive keyword match, in fixed declaration order, or
// ["General"] if none match.
func extractTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for _, cat := range topicKeywords {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, cat.Topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		topics = []string{feedback.TopicGeneral}
	}
	return topics
}

// detectUrgency reports whether text contains a danger keyword, or whether
// sentiment is strongly negative (compound < -0.6).
func detectUrgency(text string, sentiment feedback.Sentiment, compound float64) bool {
	lower := strings.ToLower(text)
	for _, kw := range dangerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return sentiment == feedback.SentimentNegative && compound < urgentCompound
}
