package framework

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// CommandRequest captures process execution metadata for a generated program.
type CommandRequest struct {
	Workdir string
	Args    []string
	Env     []string
	Input   string
	Timeout time.Duration
}

// CommandResult is what a finished (or killed) process left behind.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Combined returns stdout followed by stderr, matching how the solver log is
// persisted.
func (r CommandResult) Combined() string {
	return r.Stdout + r.Stderr
}

// CommandRunner describes a primitive capable of executing commands.
type CommandRunner interface {
	Run(ctx context.Context, req CommandRequest) (CommandResult, error)
}

// ErrLaunch marks failures that happened before the process produced any
// exit status (missing interpreter, bad workdir, ...).
var ErrLaunch = errors.New("command launch failed")

// LocalCommandRunner runs commands as host subprocesses in their own process
// group so a timeout kills the interpreter and anything it spawned.
type LocalCommandRunner struct {
	// KillGrace is how long a timed out process gets after SIGKILL is sent
	// before Wait gives up on its pipes.
	KillGrace time.Duration
}

// NewLocalCommandRunner returns a runner with sane defaults.
func NewLocalCommandRunner() *LocalCommandRunner {
	return &LocalCommandRunner{KillGrace: 2 * time.Second}
}

// Run executes the request. A non-zero exit is reported through ExitCode, not
// as an error; the returned error is reserved for launch problems.
func (r *LocalCommandRunner) Run(ctx context.Context, req CommandRequest) (CommandResult, error) {
	if len(req.Args) == 0 {
		return CommandResult{}, errors.New("command arguments required")
	}
	execCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(execCtx, req.Args[0], req.Args[1:]...)
	cmd.Dir = req.Workdir
	if len(req.Env) > 0 {
		cmd.Env = append(cmd.Environ(), req.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if r != nil && r.KillGrace > 0 {
		cmd.WaitDelay = r.KillGrace
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if req.Input != "" {
		cmd.Stdin = strings.NewReader(req.Input)
	}

	start := time.Now()
	err := cmd.Run()
	res := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.TimedOut = true
		return res, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, nil
		}
		return res, errors.Join(ErrLaunch, err)
	}
	return res, nil
}
