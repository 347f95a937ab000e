package generator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicBackend generates candidates through the Anthropic Messages API.
// It is the first backend in the default fallback chain.
type AnthropicBackend struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

func NewAnthropicBackend(model string, timeout time.Duration) *AnthropicBackend {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &AnthropicBackend{client: &client, model: model, timeout: timeout}
}

func (b *AnthropicBackend) Name() string {
	return "anthropic/" + b.model
}

func (b *AnthropicBackend) Generate(ctx context.Context, bundle PromptBundle) ([]Candidate, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.8),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildUserPrompt(bundle))),
		},
	}

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyErr(b.Name(), b.timeout, err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, &ErrProviderUnavailable{Backend: b.Name(), Err: fmt.Errorf("no text content in API response")}
	}

	cands, err := ParseCandidates(responseText)
	if err != nil {
		return nil, &ErrProviderUnavailable{Backend: b.Name(), Err: err}
	}
	return cands, nil
}
