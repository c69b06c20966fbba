package solver

import (
	"context"
	"log/slog"

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/repair"
)

// Output directories, relative to the problem directory.
const (
	OptiMUSDir  = "optimus_output"
	OptiMindDir = "optimind_output"
)

// Result summarizes one solver run for the driver.
type Result struct {
	Solver    string
	Success   bool
	Objective *float64
	Outcome   repair.Outcome
	Err       error
}

// Solver produces a program for a problem directory and runs it through the
// repair loop.
type Solver interface {
	Name() string
	Run(ctx context.Context, problemDir string) Result
}

// Deps are the collaborators both solvers share.
type Deps struct {
	Loop      *repair.Loop
	Logger    *slog.Logger
	Telemetry framework.Telemetry
	Progress  *framework.Progress
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
