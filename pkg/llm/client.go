// Package llm calls an external classifier (Anthropic primary, AWS
// Bedrock secondary, or a mock path when neither is configured) and
// validates its reply against the classification schema. Exactly one
// provider is attempted per call, chosen once at client construction by
// the fixed priority the specification requires.
package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/config"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/heuristic"
)

// Classification is the LLM path's validated output, ready to become a
// Feedback record's classification fields.
type Classification struct {
	Sentiment       feedback.Sentiment
	Topics          []string
	IsUrgent        bool
	ConfidenceScore float64
	Provider        feedback.AIProvider
}

// Client calls the configured external classifier for a single piece of
// already-sanitized text.
type Client interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// rawProvider is the minimal contract a concrete LLM backend implements:
// send the text, get back the provider's raw JSON reply.
type rawProvider interface {
	name() feedback.AIProvider
	call(ctx context.Context, systemPrompt, text string) (string, error)
}

// client wraps a single rawProvider with a circuit breaker and response
// validation, or — absent a configured provider — behaves as the mock
// path described in spec §4.B.
type client struct {
	provider rawProvider
	breaker  *gobreaker.CircuitBreaker
	mock     bool
	mockLag  time.Duration
	log      *logrus.Entry
}

// NewClient selects exactly one provider per the configured priority
// (primary, then secondary, then mock) and returns a ready-to-use Client.
func NewClient(cfg *config.Config, log *logrus.Logger) (Client, error) {
	entry := log.WithField("component", "llm_client")

	c := &client{
		mock:    cfg.UseMock(),
		mockLag: cfg.LLM.MockLatency,
		log:     entry,
	}

	if c.mock {
		entry.Info("no LLM provider configured or mock_mode set; using mock path")
		return c, nil
	}

	var p rawProvider
	if cfg.LLM.PrimaryAPIKey != "" {
		p = newAnthropicProvider(cfg.LLM.PrimaryAPIKey, cfg.LLM.PrimaryModel, cfg.LLM.RequestTimeout)
	} else {
		p = newBedrockProvider(cfg.LLM.SecondaryAPIKey, cfg.LLM.SecondaryModel, cfg.LLM.SecondaryRegion, cfg.LLM.RequestTimeout)
	}
	c.provider = p

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-" + string(p.name()),
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			entry.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).
				Warn("llm circuit breaker state change")
		},
	})

	return c, nil
}

// Classify sends text to the configured provider (or simulates the mock
// path) and returns a validated Classification.
func (c *client) Classify(ctx context.Context, text string) (Classification, error) {
	if c.mock {
		return c.classifyMock(ctx, text)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		raw, err := c.provider.call(ctx, systemPrompt, text)
		if err != nil {
			return nil, apperrors.Wrap(err, "llm transport failure")
		}
		return raw, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return Classification{}, apperrors.Wrap(apperrors.ErrUpstreamUnavailable, "circuit breaker open")
		}
		return Classification{}, apperrors.Wrap(apperrors.ErrUpstreamUnavailable, err.Error())
	}

	parsed, err := ValidateRaw(result.(string))
	if err != nil {
		return Classification{}, err
	}
	parsed.Provider = c.provider.name()
	parsed.ConfidenceScore = 0.99
	return parsed, nil
}

func (c *client) classifyMock(ctx context.Context, text string) (Classification, error) {
	lag := c.mockLag
	if lag <= 0 {
		lag = 300 * time.Millisecond
	}

	timer := time.NewTimer(lag)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Classification{}, apperrors.Wrap(apperrors.ErrUpstreamUnavailable, "mock path cancelled")
	case <-timer.C:
	}

	h := heuristic.Analyze(text)
	return Classification{
		Sentiment:       h.Sentiment,
		Topics:          h.Topics,
		IsUrgent:        h.IsUrgent,
		ConfidenceScore: 0.95,
		Provider:        feedback.ProviderMock,
	}, nil
}

// systemPrompt fixes the output JSON schema and the enumerated sentiment
// and topic values, per spec §4.B's prompt contract.
const systemPrompt = `You are a customer-feedback classification engine. Respond with VALID JSON ONLY, no prose, matching exactly this schema:
{"sentiment": "POSITIVE"|"NEGATIVE"|"NEUTRAL", "topics": ["Billing"|"Technical"|"UX"|"Security"|"General", ...], "is_urgent": boolean}
Do not include any text outside the JSON object.`
