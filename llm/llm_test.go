package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/optima/framework"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type stubBackend struct {
	name  string
	calls int
	fail  []error
	reply string
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	s.calls++
	if s.calls <= len(s.fail) && s.fail[s.calls-1] != nil {
		return "", s.fail[s.calls-1]
	}
	return s.reply + ":" + model, nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond}
}

func TestRouterRoutesByModelFamily(t *testing.T) {
	claude := &stubBackend{name: "anthropic", reply: "c"}
	groq := &stubBackend{name: "groq", reply: "g"}
	openAI := &stubBackend{name: "openai", reply: "o"}
	router := NewRouter([]Route{
		{Name: "anthropic", Match: Prefix("claude"), Backend: claude},
		{Name: "groq", Match: Exact("llama3-70b-8192"), Backend: groq},
	}, openAI, WithRetryPolicy(fastPolicy()))

	out, err := router.Complete(context.Background(), "p", "claude-haiku-4-5-20251001")
	require.NoError(t, err)
	assert.Equal(t, "c:claude-haiku-4-5-20251001", out)

	out, err = router.Complete(context.Background(), "p", "llama3-70b-8192")
	require.NoError(t, err)
	assert.Equal(t, "g:llama3-70b-8192", out)

	out, err = router.Complete(context.Background(), "p", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "o:gpt-4o", out)
}

func TestRouterWithoutFallbackFails(t *testing.T) {
	router := NewRouter(nil, nil)
	_, err := router.Complete(context.Background(), "p", "gpt-4o")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "gpt-4o", pe.Model)
}

func TestRouterRetriesTransientFailures(t *testing.T) {
	backend := &stubBackend{
		name:  "anthropic",
		reply: "ok",
		fail: []error{
			&ProviderError{StatusCode: 529, Err: errors.New("overloaded")},
			&ProviderError{StatusCode: 503, Err: errors.New("unavailable")},
		},
	}
	router := NewRouter(nil, backend, WithRetryPolicy(fastPolicy()))
	out, err := router.Complete(context.Background(), "p", "claude-x")
	require.NoError(t, err)
	assert.Equal(t, "ok:claude-x", out)
	assert.Equal(t, 3, backend.calls)
}

func TestRouterGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &ProviderError{StatusCode: 429, Err: errors.New("rate limit")}
	backend := &stubBackend{name: "openai", fail: []error{transient, transient, transient, transient, transient}}
	router := NewRouter(nil, backend, WithRetryPolicy(fastPolicy()))
	_, err := router.Complete(context.Background(), "p", "gpt-4o")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 4, backend.calls)
	assert.Equal(t, 4, pe.Attempts)
	assert.Equal(t, 429, pe.StatusCode)
	assert.Equal(t, "openai", pe.Backend)
}

func TestRouterDoesNotRetryPermanentFailures(t *testing.T) {
	backend := &stubBackend{name: "openai", fail: []error{&ProviderError{StatusCode: 401, Err: errors.New("bad key")}}}
	router := NewRouter(nil, backend, WithRetryPolicy(fastPolicy()))
	_, err := router.Complete(context.Background(), "p", "gpt-4o")
	require.Error(t, err)
	assert.Equal(t, 1, backend.calls)
}

func TestRouterChatRequiresChatBackend(t *testing.T) {
	router := NewRouter(nil, &stubBackend{name: "plain"})
	_, err := router.Chat(context.Background(), ChatRequest{Model: "m", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support chat")
}

func TestUnconfiguredBackendIsNotRetried(t *testing.T) {
	router := NewRouter([]Route{{Name: "groq", Match: Prefix("llama"), Backend: Unconfigured("groq", "GROQ_API_KEY")}}, nil,
		WithRetryPolicy(fastPolicy()))
	_, err := router.Complete(context.Background(), "p", "llama3")
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Attempts)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{&ProviderError{StatusCode: 429}, true},
		{&ProviderError{StatusCode: 500}, true},
		{&ProviderError{StatusCode: 502}, true},
		{&ProviderError{StatusCode: 503}, true},
		{&ProviderError{StatusCode: 529}, true},
		{&ProviderError{StatusCode: 400}, false},
		{&ProviderError{StatusCode: 401}, false},
		{io.ErrUnexpectedEOF, true},
		{errors.New("Overloaded: try later"), true},
		{errors.New("upstream returned status 502"), true},
		{errors.New("Status Code: 429"), true},
		{errors.New("HTTP/1.1 503"), true},
		{errors.New("upstream returned 502"), false},
		{errors.New("max_tokens must be below 500"), false},
		{errors.New("invalid request"), false},
		{fmt.Errorf("wrapped: %w", ErrNotConfigured), false},
		{context.DeadlineExceeded, false},
		{fmt.Errorf("chat: %w", context.DeadlineExceeded), false},
		{&net.DNSError{Err: "i/o timeout", Name: "api.example", IsTimeout: true}, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTransient(tc.err), "%v", tc.err)
	}
}

func TestIsTransientStopsAtExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	assert.False(t, IsTransient(ctx.Err()))
	assert.False(t, IsTransient(&ProviderError{Backend: "anthropic", Err: ctx.Err()}))
}

func TestOpenAIBackendChat(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
		assert.True(t, strings.HasSuffix(req.URL.Path, "/chat/completions"))
		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		assert.Equal(t, "microsoft/OptiMind-SFT", payload["model"])
		assert.InDelta(t, 0.4, payload["temperature"], 1e-9)
		messages, _ := payload["messages"].([]interface{})
		assert.Len(t, messages, 2)
		body := `{"id":"x","object":"chat.completion","created":1,"model":"microsoft/OptiMind-SFT",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}
	})}
	backend := NewOpenAIBackend(OpenAIConfig{Name: "optimind", APIKey: "EMPTY", BaseURL: "http://fake/v1", HTTPClient: httpClient})
	out, err := backend.Chat(context.Background(), ChatRequest{
		Model:       "microsoft/OptiMind-SFT",
		System:      "sys",
		User:        "problem",
		Temperature: 0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestOpenAIBackendStatusBecomesProviderError(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
		return &http.Response{
			StatusCode: 503,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"busy"}}`)),
			Request:    req,
		}
	})}
	backend := NewOpenAIBackend(OpenAIConfig{APIKey: "k", BaseURL: "http://fake/v1", HTTPClient: httpClient})
	_, err := backend.Complete(context.Background(), "gpt-4o", "hi")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestInstrumentedGatewayEmitsPromptAndResponse(t *testing.T) {
	rec := &framework.RecordingTelemetry{}
	inner := NewRouter(nil, &stubBackend{name: "stub", reply: "r"})
	gw := NewInstrumentedGateway(inner, rec, false)
	ctx := framework.WithRunID(context.Background(), "run-1")

	out, err := gw.Complete(ctx, "prompt", "m")
	require.NoError(t, err)
	assert.Equal(t, "r:m", out)
	require.Len(t, rec.OfType(framework.EventLLMPrompt), 1)
	resp := rec.OfType(framework.EventLLMResponse)
	require.Len(t, resp, 1)
	assert.Equal(t, "run-1", resp[0].RunID)
	assert.Equal(t, "m", resp[0].Metadata["model"])
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 10))
	assert.Equal(t, "ab...(truncated)", clip("abcdef", 2))
	assert.Equal(t, "", clip("abc", 0))
}
