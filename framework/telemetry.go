package framework

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventRunStart      EventType = "run_start"
	EventRunFinish     EventType = "run_finish"
	EventStageStart    EventType = "stage_start"
	EventStageFinish   EventType = "stage_finish"
	EventStageError    EventType = "stage_error"
	EventLLMPrompt     EventType = "llm_prompt"
	EventLLMResponse   EventType = "llm_response"
	EventExecution     EventType = "execution"
	EventRepairAttempt EventType = "repair_attempt"
	EventVerdict       EventType = "verdict"
	EventOverride      EventType = "override"
)

// Event captures structured telemetry data.
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id,omitempty"`
	Solver    string                 `json:"solver,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Telemetry receives execution traces emitted by the pipeline. Tests typically
// swap in a recording sink.
type Telemetry interface {
	Emit(event Event)
}

// NopTelemetry drops every event.
type NopTelemetry struct{}

// Emit implements Telemetry.
func (NopTelemetry) Emit(Event) {}

// MultiplexTelemetry broadcasts events to multiple sinks.
type MultiplexTelemetry struct {
	Sinks []Telemetry
}

// Emit forwards the event to all registered sinks.
func (m MultiplexTelemetry) Emit(event Event) {
	for _, s := range m.Sinks {
		if s != nil {
			s.Emit(event)
		}
	}
}

// JSONFileTelemetry writes events as newline-delimited JSON to a file.
type JSONFileTelemetry struct {
	path string
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewJSONFileTelemetry opens (or creates) the event file.
func NewJSONFileTelemetry(path string) (*JSONFileTelemetry, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFileTelemetry{
		path: path,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes the JSON record.
func (j *JSONFileTelemetry) Emit(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.enc != nil {
		_ = j.enc.Encode(event)
	}
}

// Close releases the file handle.
func (j *JSONFileTelemetry) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		j.enc = nil
		return err
	}
	return nil
}

// SlogTelemetry forwards events to a structured logger at debug level.
type SlogTelemetry struct {
	Logger *slog.Logger
}

// Emit logs the event.
func (t SlogTelemetry) Emit(event Event) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{slog.String("type", string(event.Type))}
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run", event.RunID))
	}
	if event.Solver != "" {
		attrs = append(attrs, slog.String("solver", event.Solver))
	}
	if event.Stage != "" {
		attrs = append(attrs, slog.String("stage", event.Stage))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("meta", event.Metadata))
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, event.Message, attrs...)
}

// RecordingTelemetry keeps events in memory; handy in tests.
type RecordingTelemetry struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Telemetry.
func (r *RecordingTelemetry) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *RecordingTelemetry) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events.
func (r *RecordingTelemetry) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type runKey struct{}

// WithRunID attaches the run identifier used to stamp telemetry.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

// RunIDFrom returns the run identifier stored on the context.
func RunIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runKey{}).(string)
	return id
}
