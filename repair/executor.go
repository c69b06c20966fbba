package repair

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lexcodex/optima/framework"
)

// OutputFile holds the combined stdout and stderr of the latest run.
const OutputFile = "code_output.txt"

// Execution is the result of running one program file.
type Execution struct {
	Success      bool
	Log          string
	ObjectiveRaw string
	Objective    *float64
	ExitCode     int
	TimedOut     bool
	Duration     time.Duration
}

// Executor runs generated programs in their output directory.
type Executor struct {
	Runner      framework.CommandRunner
	Interpreter string
}

// NewExecutor returns an executor backed by local subprocesses.
func NewExecutor(runner framework.CommandRunner, interpreter string) *Executor {
	if runner == nil {
		runner = framework.NewLocalCommandRunner()
	}
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	return &Executor{Runner: runner, Interpreter: interpreter}
}

// Execute runs dir/file with a hard timeout and records the combined output
// in code_output.txt. Failing programs are reported through Execution; the
// returned error is reserved for cancellation and I/O problems.
func (e *Executor) Execute(ctx context.Context, dir, file string, timeout time.Duration) (Execution, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	artifact := filepath.Join(dir, TrailerMarker)
	if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Execution{}, fmt.Errorf("clear %s: %w", TrailerMarker, err)
	}

	res, runErr := e.Runner.Run(ctx, framework.CommandRequest{
		Workdir: dir,
		Args:    []string{e.Interpreter, file},
		Timeout: timeout,
	})
	if runErr != nil && ctx.Err() != nil {
		return Execution{}, ctx.Err()
	}

	exec := Execution{ExitCode: res.ExitCode, TimedOut: res.TimedOut, Duration: res.Duration}
	switch {
	case runErr != nil:
		exec.Log = fmt.Sprintf("Execution failed: %v\n", runErr)
	case res.TimedOut:
		exec.Log = fmt.Sprintf("Execution timed out after %ds.\n", int(timeout.Seconds())) + res.Combined()
	default:
		exec.Log = res.Combined()
		if exec.Log == "" {
			exec.Log = "(no output)\n"
		}
	}
	if err := os.WriteFile(filepath.Join(dir, OutputFile), []byte(exec.Log), 0o644); err != nil {
		return exec, fmt.Errorf("write %s: %w", OutputFile, err)
	}

	if raw, err := os.ReadFile(artifact); err == nil {
		exec.ObjectiveRaw = strings.TrimSpace(string(raw))
		if v, perr := strconv.ParseFloat(exec.ObjectiveRaw, 64); perr == nil {
			exec.Objective = &v
		}
	}
	exec.Success = runErr == nil && !res.TimedOut && res.ExitCode == 0 && exec.ObjectiveRaw != ""
	return exec, nil
}
