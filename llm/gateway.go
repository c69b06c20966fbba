package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
)

// Gateway is the single text-in/text-out surface the pipeline talks to.
type Gateway interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Backend is one hosted text-generation family (Anthropic, OpenAI, Groq, ...).
type Backend interface {
	Name() string
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// ChatRequest carries the extra knobs needed by system-prompted, sampled chat
// calls such as the OptiMind server.
type ChatRequest struct {
	Model            string
	System           string
	User             string
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	MaxTokens        int
}

// ChatBackend is a Backend that also accepts a full ChatRequest.
type ChatBackend interface {
	Backend
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Route maps a family of model ids to a backend.
type Route struct {
	Name    string
	Match   func(model string) bool
	Backend Backend
}

// Prefix matches model ids starting with p.
func Prefix(p string) func(string) bool {
	return func(model string) bool { return strings.HasPrefix(model, p) }
}

// Exact matches one model id.
func Exact(id string) func(string) bool {
	return func(model string) bool { return model == id }
}

// Router picks a backend for each call from an ordered list of routes and
// applies the retry policy around it.
type Router struct {
	routes   []Route
	fallback Backend
	policy   RetryPolicy
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRetryPolicy overrides the default 4 attempts / 2s policy.
func WithRetryPolicy(p RetryPolicy) RouterOption {
	return func(r *Router) { r.policy = p }
}

// WithRateLimit throttles calls to rps requests per second (0 disables).
func WithRateLimit(rps float64) RouterOption {
	return func(r *Router) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter builds a router. fallback serves every model no route matches.
func NewRouter(routes []Route, fallback Backend, opts ...RouterOption) *Router {
	r := &Router{
		routes:   routes,
		fallback: fallback,
		policy:   DefaultRetryPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the backend that would serve model.
func (r *Router) Resolve(model string) (Backend, error) {
	for _, route := range r.routes {
		if route.Match != nil && route.Match(model) {
			if route.Backend == nil {
				break
			}
			return route.Backend, nil
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("no backend for model %q", model)
	}
	return r.fallback, nil
}

// Complete implements Gateway.
func (r *Router) Complete(ctx context.Context, prompt, model string) (string, error) {
	backend, err := r.Resolve(model)
	if err != nil {
		return "", &ProviderError{Model: model, Err: err}
	}
	return r.call(ctx, backend.Name(), model, func(ctx context.Context) (string, error) {
		return backend.Complete(ctx, model, prompt)
	})
}

// Chat sends a ChatRequest to the backend serving req.Model, which must
// support chat.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (string, error) {
	backend, err := r.Resolve(req.Model)
	if err != nil {
		return "", &ProviderError{Model: req.Model, Err: err}
	}
	chat, ok := backend.(ChatBackend)
	if !ok {
		return "", &ProviderError{Backend: backend.Name(), Model: req.Model, Err: errors.New("backend does not support chat requests")}
	}
	return r.call(ctx, backend.Name(), req.Model, func(ctx context.Context) (string, error) {
		return chat.Chat(ctx, req)
	})
}

func (r *Router) call(ctx context.Context, backend, model string, fn func(context.Context) (string, error)) (string, error) {
	text, attempts, err := r.policy.Do(ctx, func(ctx context.Context) (string, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		out, err := fn(ctx)
		if err != nil && IsTransient(err) {
			r.logger.Warn("transient llm failure", "backend", backend, "model", model, "error", err)
		}
		return out, err
	})
	if err == nil {
		return text, nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		pe.Attempts = attempts
		if pe.Backend == "" {
			pe.Backend = backend
		}
		if pe.Model == "" {
			pe.Model = model
		}
		return "", pe
	}
	return "", &ProviderError{Backend: backend, Model: model, Attempts: attempts, Err: err}
}

// unconfigured stands in for a backend whose credentials are absent so the
// failure surfaces at call time with a useful hint.
type unconfigured struct {
	name   string
	envVar string
}

// Unconfigured returns a backend that always fails with ErrNotConfigured.
func Unconfigured(name, envVar string) ChatBackend {
	return unconfigured{name: name, envVar: envVar}
}

func (u unconfigured) Name() string { return u.name }

func (u unconfigured) Complete(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("%w: %s model requested but %s is not set", ErrNotConfigured, u.name, u.envVar)
}

func (u unconfigured) Chat(ctx context.Context, req ChatRequest) (string, error) {
	return u.Complete(ctx, req.Model, req.User)
}
