package repair

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aymanbagabas/go-udiff"

	"github.com/lexcodex/optima/extract"
	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/llm"
)

// State is the lifecycle of one variant's program.
type State string

const (
	StateNotRun    State = "NOT_RUN"
	StateRunning   State = "RUNNING"
	StateSuccess   State = "SUCCESS"
	StateFailed    State = "FAILED"
	StateExhausted State = "EXHAUSTED"
)

// Outcome is what the loop hands back to the solver. Failure is data here,
// never an error.
type Outcome struct {
	State        State
	Success      bool
	Attempts     int
	Executions   int
	Code         string
	CodeFile     string
	Log          string
	ObjectiveRaw string
	Objective    *float64
}

// Loop executes a program and, while it keeps failing, asks a fixer model for
// a corrected version until the variant's budget runs out.
type Loop struct {
	Gateway   llm.Gateway
	Executor  *Executor
	Logger    *slog.Logger
	Telemetry framework.Telemetry
	Progress  *framework.Progress
}

// Run drives one program through execution and repair inside dir.
func (l *Loop) Run(ctx context.Context, v Variant, dir, description, code string) (Outcome, error) {
	v = v.withDefaults()
	logger := l.logger().With("solver", v.Name)

	patched := l.patch(logger, code)
	code = patched
	if err := writeFile(dir, v.CanonicalFile, code); err != nil {
		return Outcome{State: StateNotRun}, err
	}
	l.Progress.Info("Saved code -> %s", filepath.Join(dir, v.CanonicalFile))

	out := Outcome{State: StateRunning, Code: code, CodeFile: v.CanonicalFile}
	exec, err := l.execute(ctx, v, dir, v.CanonicalFile, 0)
	if err != nil {
		return out, err
	}
	out.Executions++
	out.apply(exec)
	if exec.Success {
		out.State = StateSuccess
		l.Progress.OK("[%s] Execution succeeded on first attempt.", v.Name)
		return out, nil
	}
	out.State = StateFailed
	l.Progress.Warn("[%s] Execution failed. Entering repair loop.", v.Name)

	prevFile := v.CanonicalFile
	skips := 0
	for attempt := 1; attempt <= v.Budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts = attempt
		tag := fmt.Sprintf("[%d/%d]", attempt, v.Budget)

		if err := writeFile(dir, v.ErrorFile(attempt-1), out.Log); err != nil {
			return out, err
		}
		l.Progress.Info("%s Saved error -> %s", tag, v.ErrorFile(attempt-1))
		l.Progress.Info("%s Sending code + error to fixer (%s)", tag, v.FixerModel)

		fixed, ok, ferr := l.fix(ctx, v, description, code, out.Log)
		if ferr != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			logger.Warn("fixer call failed", "attempt", attempt, "error", ferr)
			l.Progress.Warn("%s Fixer failed: %v", tag, ferr)
			l.emit(ctx, v, framework.EventRepairAttempt, "fixer failed", map[string]interface{}{"attempt": attempt, "error": ferr.Error()})
			continue
		}
		if !ok {
			l.Progress.Warn("%s Fixer returned no code block, skipping.", tag)
			l.emit(ctx, v, framework.EventRepairAttempt, "no code block", map[string]interface{}{"attempt": attempt})
			if !v.SkipConsumesSlot && skips < v.Budget {
				skips++
				attempt--
			}
			continue
		}

		next := l.patch(logger, fixed)
		file := v.AttemptFile(attempt)
		diff := udiff.Unified(prevFile, file, code, next)
		if err := writeFile(dir, fmt.Sprintf("diff_%d.patch", attempt), diff); err != nil {
			return out, err
		}
		code = next
		if err := writeFile(dir, file, code); err != nil {
			return out, err
		}
		prevFile = file
		out.Code, out.CodeFile = code, file
		l.Progress.Info("%s Saved fixed code -> %s", tag, file)
		l.emit(ctx, v, framework.EventRepairAttempt, "fix applied", map[string]interface{}{"attempt": attempt, "file": file})

		exec, err = l.execute(ctx, v, dir, file, attempt)
		if err != nil {
			return out, err
		}
		out.Executions++
		out.apply(exec)
		if exec.Success {
			if err := writeFile(dir, v.CanonicalFile, code); err != nil {
				return out, err
			}
			out.State = StateSuccess
			out.CodeFile = v.CanonicalFile
			l.Progress.OK("%s Execution succeeded after %d fix(es).", tag, attempt)
			return out, nil
		}
		l.Progress.Warn("%s Still failing.", tag)
	}

	if err := writeFile(dir, v.ErrorFile(v.Budget), out.Log); err != nil {
		return out, err
	}
	if err := writeFile(dir, v.CanonicalFile, code); err != nil {
		return out, err
	}
	out.State = StateExhausted
	out.CodeFile = v.CanonicalFile
	logger.Warn("repair budget exhausted", "budget", v.Budget)
	l.Progress.Fail("[%s] Max repair iterations (%d) exhausted. Code still failing.", v.Name, v.Budget)
	return out, nil
}

func (o *Outcome) apply(exec Execution) {
	o.Success = exec.Success
	o.Log = exec.Log
	o.ObjectiveRaw = exec.ObjectiveRaw
	o.Objective = exec.Objective
}

func (l *Loop) patch(logger *slog.Logger, code string) string {
	res := Patch(code)
	if res.Fallback {
		logger.Warn("no Model(...) construction found, assuming default name", "name", DefaultModelVar)
	}
	return res.Code
}

func (l *Loop) fix(ctx context.Context, v Variant, description, code, output string) (string, bool, error) {
	if l.Gateway == nil {
		return "", false, fmt.Errorf("no fixer gateway configured")
	}
	resp, err := l.Gateway.Complete(ctx, v.FixPrompt(description, code, output), v.FixerModel)
	if err != nil {
		return "", false, err
	}
	fixed, ok := extract.CodeBlock(resp)
	return fixed, ok, nil
}

func (l *Loop) execute(ctx context.Context, v Variant, dir, file string, attempt int) (Execution, error) {
	executor := l.Executor
	if executor == nil {
		executor = NewExecutor(nil, v.Interpreter)
	}
	exec, err := executor.Execute(ctx, dir, file, v.Timeout)
	if err != nil {
		return exec, err
	}
	l.emit(ctx, v, framework.EventExecution, "executed "+file, map[string]interface{}{
		"attempt":     attempt,
		"success":     exec.Success,
		"exit_code":   exec.ExitCode,
		"timed_out":   exec.TimedOut,
		"duration_ms": exec.Duration.Milliseconds(),
		"objective":   exec.ObjectiveRaw,
	})
	l.logger().Debug("program executed", "solver", v.Name, "file", file, "success", exec.Success, "exit_code", exec.ExitCode)
	return exec, nil
}

func (l *Loop) emit(ctx context.Context, v Variant, typ framework.EventType, msg string, meta map[string]interface{}) {
	if l.Telemetry == nil {
		return
	}
	l.Telemetry.Emit(framework.Event{
		Type:      typ,
		RunID:     framework.RunIDFrom(ctx),
		Solver:    v.Name,
		Stage:     "repair",
		Message:   msg,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	})
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
