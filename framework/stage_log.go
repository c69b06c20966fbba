package framework

import (
	"log/slog"
	"os"
	"sync"
)

// StageLog is the append-only human-readable log each solver keeps next to its
// artifacts (log.txt). Writes from concurrent stages are serialized so lines
// never interleave.
type StageLog struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	err    error
}

// NewStageLog truncates (or creates) path and returns a log bound to it.
// Write failures are reported through logger; nil means slog.Default().
func NewStageLog(path string, logger *slog.Logger) (*StageLog, error) {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StageLog{path: path, logger: logger}, nil
}

// Path returns the backing file.
func (l *StageLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Log appends text plus a trailing newline. A nil log is a no-op. The first
// failed write is logged and kept for Err; later failures are dropped quietly.
func (l *StageLog) Log(text string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := appendLine(l.path, text); err != nil && l.err == nil {
		l.err = err
		l.logger.Warn("stage log write failed", "path", l.path, "error", err)
	}
}

// Err returns the first write failure, if any.
func (l *StageLog) Err() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func appendLine(path, text string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
