package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// RouterBackend talks to an OpenAI-compatible multi-model router (OpenRouter
// or similar) and serves as the fallback once the primary backend fails.
type RouterBackend struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewRouterBackend(baseURL, model string, timeout time.Duration) *RouterBackend {
	cfg := openai.DefaultConfig(os.Getenv("ROUTER_API_KEY"))
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &RouterBackend{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (b *RouterBackend) Name() string {
	return "router/" + b.model
}

func (b *RouterBackend) Generate(ctx context.Context, bundle PromptBundle) ([]Candidate, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(bundle)},
		},
		MaxTokens:   4096,
		Temperature: 0.8,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 500 {
			return nil, &ErrProviderUnavailable{Backend: b.Name(), Err: err}
		}
		return nil, classifyErr(b.Name(), b.timeout, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ErrProviderUnavailable{Backend: b.Name(), Err: fmt.Errorf("empty completion response")}
	}

	cands, err := ParseCandidates(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &ErrProviderUnavailable{Backend: b.Name(), Err: err}
	}
	return cands, nil
}
