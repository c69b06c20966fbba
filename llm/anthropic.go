package llm

import (
	"context"
	"errors"
	"fmt"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
)

// DefaultAnthropicMaxTokens matches the output ceiling used for every
// formulation prompt.
const DefaultAnthropicMaxTokens = 8192

// AnthropicBackend serves claude-* models through a fantasy provider.
type AnthropicBackend struct {
	provider  fantasy.Provider
	maxTokens int64
}

// NewAnthropicBackend creates the provider once at start-up.
func NewAnthropicBackend(apiKey, baseURL string, maxTokens int) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrNotConfigured)
	}
	opts := []anthropic.Option{anthropic.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	provider, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic provider: %w", err)
	}
	return NewAnthropicBackendFromProvider(provider, maxTokens), nil
}

// NewAnthropicBackendFromProvider wraps an existing provider (used by tests).
func NewAnthropicBackendFromProvider(provider fantasy.Provider, maxTokens int) *AnthropicBackend {
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	return &AnthropicBackend{provider: provider, maxTokens: int64(maxTokens)}
}

// Name implements Backend.
func (b *AnthropicBackend) Name() string { return "anthropic" }

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	lm, err := b.provider.LanguageModel(ctx, model)
	if err != nil {
		return "", fmt.Errorf("get language model: %w", err)
	}
	maxTokens := b.maxTokens
	resp, err := lm.Generate(ctx, fantasy.Call{
		Prompt:          fantasy.Prompt{fantasy.NewUserMessage(prompt)},
		MaxOutputTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	text := resp.Content.Text()
	if text == "" {
		return "", &ProviderError{Backend: b.Name(), Model: model, Err: errors.New("empty response")}
	}
	return text, nil
}
