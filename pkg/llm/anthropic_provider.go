package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
)

// anthropicProvider is the primary, low-latency LLM path (spec §4.B/§6).
type anthropicProvider struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func newAnthropicProvider(apiKey, model string, timeout time.Duration) *anthropicProvider {
	return &anthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
	}
}

func (p *anthropicProvider) name() feedback.AIProvider { return feedback.ProviderPrimary }

// call issues a strict-JSON, temperature-0 classification request. The
// request's own timeout is longer than the race deadline per spec §4.B —
// the orchestrator, not this client, enforces the user-visible deadline.
func (p *anthropicProvider) call(ctx context.Context, systemPrompt, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   256,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb := block.AsText(); tb.Text != "" {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
