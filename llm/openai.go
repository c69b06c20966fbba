package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	GroqBaseURL     = "https://api.groq.com/openai/v1"
	OptiMindBaseURL = "http://localhost:30000/v1"
)

// OpenAIConfig configures an OpenAI-compatible chat backend. The same client
// serves OpenAI proper, Groq and the self-hosted OptiMind server.
type OpenAIConfig struct {
	Name         string
	APIKey       string
	BaseURL      string
	Organization string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// OpenAIBackend talks to an OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	name   string
	client openai.Client
}

// NewOpenAIBackend builds the client once; SDK-level retries are disabled
// because the Router owns the retry policy.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIBackend{name: name, client: openai.NewClient(opts...)}
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string { return b.name }

// Complete sends prompt as a single user message.
func (b *OpenAIBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	return b.Chat(ctx, ChatRequest{Model: model, User: prompt})
}

// Chat implements ChatBackend. Zero-valued sampling fields are left to the
// server default.
func (b *OpenAIBackend) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Backend: b.name, Model: req.Model, StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Backend: b.name, Model: req.Model, Err: errors.New("response contained no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}
