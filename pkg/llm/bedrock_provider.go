package llm

import (
	"context"
	"encoding/json"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
)

// bedrockProvider is the secondary LLM path: an Anthropic model served
// through AWS Bedrock, attempted only when the primary provider is absent
// or disabled (spec §4.B/§6).
type bedrockProvider struct {
	client  *bedrockruntime.Client
	model   string
	timeout time.Duration
}

func newBedrockProvider(_, model, region string, timeout time.Duration) *bedrockProvider {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		// On a load failure the provider keeps an empty config, so its
		// invocations fail and surface as UpstreamUnavailable, which the
		// orchestrator already treats as a fallback.
		cfg = awsconfig.Config{}
	}
	return &bedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (p *bedrockProvider) name() feedback.AIProvider { return feedback.ProviderSecondary }

// bedrockAnthropicRequest is the Messages-API-shaped request body Bedrock
// expects for Anthropic models.
type bedrockAnthropicRequest struct {
	AnthropicVersion string                 `json:"anthropic_version"`
	MaxTokens        int                    `json:"max_tokens"`
	Temperature      float64                `json:"temperature"`
	System           string                 `json:"system"`
	Messages         []bedrockAnthropicTurn `json:"messages"`
}

type bedrockAnthropicTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *bedrockProvider) call(ctx context.Context, systemPrompt, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        256,
		Temperature:      0,
		System:           systemPrompt,
		Messages: []bedrockAnthropicTurn{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", err
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &p.model,
		ContentType: strPtr("application/json"),
		Accept:      strPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", err
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

func strPtr(s string) *string { return &s }
