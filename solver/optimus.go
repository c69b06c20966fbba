package solver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/llm"
	"github.com/lexcodex/optima/repair"
	"github.com/lexcodex/optima/synthesis"
)

// OptiMUS formulates the problem stage by stage, assembles the program and
// hands it to the repair loop.
type OptiMUS struct {
	Deps
	Gateway llm.Gateway
	Model   string
	Variant repair.Variant
}

// NewOptiMUS wires the multi-stage solver.
func NewOptiMUS(deps Deps, gateway llm.Gateway, model string) *OptiMUS {
	return &OptiMUS{Deps: deps, Gateway: gateway, Model: model, Variant: repair.OptiMUSVariant()}
}

func (o *OptiMUS) Name() string { return "optimus" }

// Run never panics on model or program failures; they come back in Result.
func (o *OptiMUS) Run(ctx context.Context, problemDir string) Result {
	res := Result{Solver: o.Name()}
	runDir := filepath.Join(problemDir, OptiMUSDir)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		res.Err = err
		return res
	}
	logger := o.logger().With("solver", o.Name())
	stageLog, err := framework.NewStageLog(filepath.Join(runDir, "log.txt"), logger)
	if err != nil {
		res.Err = fmt.Errorf("open stage log: %w", err)
		return res
	}

	pipeline := &synthesis.Pipeline{
		Gateway:   o.Gateway,
		Model:     o.Model,
		StageLog:  stageLog,
		Logger:    logger,
		Telemetry: o.Telemetry,
		Progress:  o.Progress,
	}
	state, err := pipeline.Run(ctx, problemDir, runDir)
	if err != nil {
		logger.Error("formulation failed", "error", err)
		o.Progress.Fail("[optimus] %v", err)
		res.Err = err
		return res
	}

	loop := o.Loop
	if loop == nil {
		loop = &repair.Loop{Gateway: o.Gateway, Logger: logger, Telemetry: o.Telemetry, Progress: o.Progress}
	}
	outcome, err := loop.Run(ctx, o.Variant, runDir, state.Description, state.Program)
	res.Outcome = outcome
	if err != nil {
		res.Err = err
		return res
	}
	stageLog.Log(fmt.Sprintf("EXECUTION: %s after %d repair attempt(s)", outcome.State, outcome.Attempts))

	final := state.Clone()
	final.Program = outcome.Code
	final.Outcome = &formulation.Execution{
		State:     string(outcome.State),
		Success:   outcome.Success,
		Attempts:  outcome.Attempts,
		Objective: outcome.ObjectiveRaw,
	}
	if err := formulation.NewSnapshots(runDir).Save(formulation.SnapshotCode, final); err != nil {
		logger.Warn("could not record final state", "error", err)
	}

	res.Success = outcome.Success
	res.Objective = outcome.Objective
	return res
}
