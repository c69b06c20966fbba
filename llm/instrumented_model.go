package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lexcodex/optima/framework"
)

// InstrumentedGateway wraps a Gateway and emits telemetry for prompts and
// responses.
type InstrumentedGateway struct {
	Inner     Gateway
	Telemetry framework.Telemetry
	Debug     bool
}

func NewInstrumentedGateway(inner Gateway, telemetry framework.Telemetry, debug bool) *InstrumentedGateway {
	return &InstrumentedGateway{Inner: inner, Telemetry: telemetry, Debug: debug}
}

func (g *InstrumentedGateway) Complete(ctx context.Context, prompt, model string) (string, error) {
	meta := map[string]interface{}{
		"model":          model,
		"prompt_chars":   len(prompt),
		"prompt_preview": clip(prompt, 1024),
	}
	if g.Debug {
		meta["prompt"] = clip(prompt, 8192)
	}
	g.emit(ctx, framework.EventLLMPrompt, "llm complete prompt", meta)
	start := time.Now()
	text, err := g.Inner.Complete(ctx, prompt, model)
	g.emitResponse(ctx, model, text, err, time.Since(start))
	return text, err
}

// Chat forwards to the inner gateway when it supports chat requests.
func (g *InstrumentedGateway) Chat(ctx context.Context, req ChatRequest) (string, error) {
	chat, ok := g.Inner.(interface {
		Chat(context.Context, ChatRequest) (string, error)
	})
	if !ok {
		return "", &ProviderError{Model: req.Model, Err: fmt.Errorf("gateway %T does not support chat requests", g.Inner)}
	}
	meta := map[string]interface{}{
		"model":          req.Model,
		"system_chars":   len(req.System),
		"prompt_chars":   len(req.User),
		"prompt_preview": clip(req.User, 1024),
		"temperature":    req.Temperature,
	}
	g.emit(ctx, framework.EventLLMPrompt, "llm chat prompt", meta)
	start := time.Now()
	text, err := chat.Chat(ctx, req)
	g.emitResponse(ctx, req.Model, text, err, time.Since(start))
	return text, err
}

func (g *InstrumentedGateway) emitResponse(ctx context.Context, model, text string, err error, took time.Duration) {
	meta := map[string]interface{}{
		"model":        model,
		"duration_ms":  took.Milliseconds(),
		"text_chars":   len(text),
		"text_preview": clip(text, 1024),
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	g.emit(ctx, framework.EventLLMResponse, "llm response", meta)
}

func (g *InstrumentedGateway) emit(ctx context.Context, typ framework.EventType, msg string, meta map[string]interface{}) {
	if g == nil || g.Telemetry == nil {
		return
	}
	g.Telemetry.Emit(framework.Event{
		Type:      typ,
		RunID:     framework.RunIDFrom(ctx),
		Timestamp: time.Now().UTC(),
		Message:   msg,
		Metadata:  meta,
	})
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
