package llm

import (
	"encoding/json"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
)

// rawClassification mirrors the schema the system prompt requests, with
// permissive typing on is_urgent since the LLM is adversarial w.r.t. the
// schema (e.g. may send "true" as a string).
type rawClassification struct {
	Sentiment interface{} `json:"sentiment"`
	Topics    interface{} `json:"topics"`
	IsUrgent  interface{} `json:"is_urgent"`
}

// candidatePaths are alternate jq paths tried, in order, when a reply
// doesn't parse at the top level — some providers nest the classification
// under a wrapper object. This is purely advisory: failing every
// candidate still raises ErrUpstreamBadFormat exactly as a direct parse
// failure would.
var candidatePaths = []string{
	".",
	".result",
	".data.classification",
	".classification",
	".response",
}

// ValidateRaw parses and validates an LLM reply's JSON body into a
// Classification, coercing adversarial fields per spec §4.B rather than
// rejecting them outright. A reply that cannot be coaxed into the schema
// by any candidate path raises ErrUpstreamBadFormat.
func ValidateRaw(body string) (Classification, error) {
	obj, ok := decode(body)
	if !ok {
		return Classification{}, apperrors.Wrap(apperrors.ErrUpstreamBadFormat, "no candidate path produced a parseable object")
	}
	return coerce(obj), nil
}

// decode tries a direct JSON decode first, then falls back to gojq over
// each candidate path against the generically-decoded document.
func decode(body string) (rawClassification, bool) {
	var direct rawClassification
	if err := json.Unmarshal([]byte(body), &direct); err == nil && looksLikeClassification(direct) {
		return direct, true
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return rawClassification{}, false
	}

	for _, path := range candidatePaths {
		query, err := gojq.Parse(path)
		if err != nil {
			continue
		}
		iter := query.Run(doc)
		v, ok := iter.Next()
		if !ok {
			continue
		}
		if err, isErr := v.(error); isErr {
			_ = err
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var candidate rawClassification
		if err := json.Unmarshal(b, &candidate); err != nil {
			continue
		}
		if looksLikeClassification(candidate) {
			return candidate, true
		}
	}
	return rawClassification{}, false
}

// looksLikeClassification requires at least one recognizable field so an
// arbitrary unrelated JSON object along a candidate path isn't accepted.
func looksLikeClassification(r rawClassification) bool {
	return r.Sentiment != nil || r.Topics != nil || r.IsUrgent != nil
}

// coerce applies spec §4.B's response-validation rules: sentiment is
// uppercased and checked against the enum (default NEUTRAL); topics must
// be a non-empty list (default ["General"], unknown tags retained);
// is_urgent coerces to boolean (default false).
func coerce(r rawClassification) Classification {
	sentiment := feedback.Sentiment(strings.ToUpper(toString(r.Sentiment)))
	if !sentiment.Valid() {
		sentiment = feedback.SentimentNeutral
	}

	topics := toStringSlice(r.Topics)
	if len(topics) == 0 {
		topics = []string{feedback.TopicGeneral}
	}

	return Classification{
		Sentiment: sentiment,
		Topics:    topics,
		IsUrgent:  toBool(r.IsUrgent),
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toStringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}
