package heuristic

// valence is a lexicon-based word polarity table, a trimmed port of the
// VADER sentiment lexicon's mean-valence scores (roughly -4..+4).
// analyzer.go scales each score down to the -1..+1 band before applying
// modifiers.
// Not exhaustive — this is the subset needed for short customer-feedback
// style text, not general-purpose sentiment analysis.
var valence = map[string]float64{
	"good": 1.9, "great": 3.1, "excellent": 3.6, "amazing": 3.4,
	"awesome": 3.1, "fantastic": 3.3, "wonderful": 3.0, "love": 3.2,
	"like": 1.4, "nice": 1.8, "happy": 2.7, "pleased": 2.1,
	"satisfied": 2.2, "perfect": 3.2, "best": 3.2, "easy": 1.7,
	"smooth": 1.6, "fast": 1.4, "helpful": 2.0,
	"brilliant": 2.9, "superb": 3.1, "delight": 2.7, "delighted": 2.8,
	"thank": 1.6, "thanks": 1.6, "recommend": 1.8, "impressive": 2.6,
	"intuitive": 2.0, "reliable": 2.0, "beautiful": 2.6, "clean": 1.4,

	"bad": -2.5, "terrible": -3.4, "awful": -3.1, "horrible": -3.5,
	"hate": -3.0, "worst": -3.2, "poor": -2.0, "disappointing": -2.3,
	"disappointed": -2.2, "frustrating": -2.2, "frustrated": -2.1,
	"annoying": -2.0, "useless": -2.5, "broken": -1.9, "slow": -1.2,
	"buggy": -2.0, "confusing": -1.8, "ugly": -1.9, "unacceptable": -2.6,
	"angry": -2.7, "furious": -3.3, "disgusted": -2.9, "disgusting": -3.0,
	"horrendous": -3.4, "pathetic": -2.7, "worthless": -2.8, "scam": -2.9,
	"rude": -2.3, "unresponsive": -1.9, "crash": -2.0, "crashes": -2.0,
	"crashed": -2.0, "fail": -1.8, "failed": -1.8, "failure": -2.0,
	"error": -1.5, "errors": -1.5, "lag": -1.4, "laggy": -1.5,
	"overpriced": -1.9, "ripoff": -2.8, "sucks": -2.6, "sucked": -2.6,
	"garbage": -2.9, "nightmare": -2.8,
}

// boosterWords scale the valence of the following sentiment word. Positive
// values intensify ("very good"), negative values dampen ("slightly good").
var boosterWords = map[string]float64{
	"very":        0.293,
	"extremely":   0.382,
	"incredibly":  0.382,
	"really":      0.227,
	"absolutely":  0.293,
	"totally":     0.293,
	"completely":  0.293,
	"utterly":     0.293,
	"so":          0.227,
	"slightly":    -0.293,
	"somewhat":    -0.293,
	"barely":      -0.293,
	"hardly":      -0.293,
	"kinda":       -0.227,
}

// negationWords flip (and dampen) the valence of sentiment words that
// follow within a short window.
var negationWords = map[string]bool{
	"not": true, "no": true, "never": true, "none": true,
	"nobody": true, "nothing": true, "neither": true, "nor": true,
	"cannot": true, "cant": true, "dont": true, "doesnt": true,
	"didnt": true, "isnt": true, "wasnt": true, "wouldnt": true,
	"couldnt": true, "shouldnt": true, "wont": true, "without": true,
}

// dangerKeywords force is_urgent regardless of sentiment intensity.
var dangerKeywords = []string{
	"lawsuit", "sue", "illegal", "gdpr", "emergency", "fraud", "police",
}

// topicKeywords is evaluated in this fixed order so the first-match
// ordering of the resulting topic list is deterministic.
var topicKeywords = []struct {
	Topic    string
	Keywords []string
}{
	{"Billing", []string{"charge", "credit", "card", "refund", "bill", "invoice", "cost"}},
	{"Technical", []string{"bug", "crash", "error", "fail", "slow", "login", "app", "500", "404"}},
	{"UX", []string{"ugly", "confusing", "hard", "color", "button", "nav", "interface"}},
	{"Security", []string{"password", "hacked", "breach", "suspicious", "auth", "phishing"}},
}
