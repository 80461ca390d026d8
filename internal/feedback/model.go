// Package feedback defines the sole persisted entity of the engine — the
// Feedback record — along with its closed-set enums and the fixed
// topic-to-department routing table.
package feedback

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Sentiment is a closed-set classification axis.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// Valid reports whether s is one of the three permitted wire values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Source identifies which path produced the stored classification.
type Source string

const (
	SourceAI       Source = "AI"
	SourceFallback Source = "FALLBACK"
)

// AIProvider is a provenance tag for the classification path actually used.
type AIProvider string

const (
	ProviderPrimary   AIProvider = "primary-llm"
	ProviderSecondary AIProvider = "secondary-llm"
	ProviderHeuristic AIProvider = "heuristic"
	ProviderMock      AIProvider = "mock"
	ProviderUnknown   AIProvider = "unknown"
)

// Status is the ticket's workflow status.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
)

// Priority is the ticket's triage priority.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Department is the routing destination a topic list resolves to.
type Department string

const (
	DepartmentFinance     Department = "Finance"
	DepartmentEngineering Department = "Engineering"
	DepartmentProduct     Department = "Product"
	DepartmentInfoSec     Department = "InfoSec"
	DepartmentSupport     Department = "Support"
	DepartmentUnassigned  Department = "Unassigned"
)

// Known topic tags. Unknown tags from an LLM response are retained on the
// record but ignored by the department mapping.
const (
	TopicBilling   = "Billing"
	TopicTechnical = "Technical"
	TopicUX        = "UX"
	TopicSecurity  = "Security"
	TopicGeneral   = "General"
)

// topicToDepartment is the fixed routing table from spec §4 — order of
// declaration is irrelevant; lookup is by key, first topic in the record's
// own order that has an entry wins (see ResolveDepartment).
var topicToDepartment = map[string]Department{
	TopicBilling:   DepartmentFinance,
	TopicTechnical: DepartmentEngineering,
	TopicUX:        DepartmentProduct,
	TopicSecurity:  DepartmentInfoSec,
	TopicGeneral:   DepartmentSupport,
}

// ResolveDepartment returns the department for the first topic (in order)
// that has a known mapping, or DepartmentUnassigned if none match.
func ResolveDepartment(topics []string) Department {
	for _, t := range topics {
		if d, ok := topicToDepartment[t]; ok {
			return d
		}
	}
	return DepartmentUnassigned
}

// TopicList is a non-empty, order-preserving list of topic tags, persisted
// as a JSON array column.
type TopicList []string

// Value implements driver.Valuer.
func (t TopicList) Value() (driver.Value, error) {
	if len(t) == 0 {
		t = TopicList{TopicGeneral}
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, errors.Wrap(err, "marshal topics")
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *TopicList) Scan(src interface{}) error {
	if src == nil {
		*t = TopicList{TopicGeneral}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for TopicList: %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return errors.Wrap(err, "unmarshal topics")
	}
	if len(out) == 0 {
		out = []string{TopicGeneral}
	}
	*t = out
	return nil
}

// Feedback is the sole persisted entity.
type Feedback struct {
	ID              string     `db:"id" json:"id"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	RawContent      string     `db:"raw_content" json:"raw_content"`
	ContentHash     string     `db:"content_hash" json:"content_hash"`
	Sentiment       Sentiment  `db:"sentiment" json:"sentiment"`
	Topics          TopicList  `db:"topics" json:"topics"`
	IsUrgent        bool       `db:"is_urgent" json:"is_urgent"`
	ConfidenceScore float64    `db:"confidence_score" json:"confidence_score"`
	Source          Source     `db:"source" json:"source"`
	AIProvider      AIProvider `db:"ai_provider" json:"ai_provider"`
	Department      Department `db:"department" json:"department"`
	Status          Status     `db:"status" json:"status"`
	Priority        Priority   `db:"priority" json:"priority"`
	ResolutionNote  string     `db:"resolution_note" json:"resolution_note,omitempty"`
	NeedsReview     bool       `db:"needs_review" json:"needs_review"`
}
