package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexcodex/optima/extract"
	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/llm"
)

// DefaultModel drives every formulation stage unless overridden.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultExtractAttempts allows one fresh call after an unparseable reply.
const DefaultExtractAttempts = 2

// Pipeline turns a problem description and parameters into an assembled
// gurobipy program, snapshotting the state after every stage.
type Pipeline struct {
	Gateway         llm.Gateway
	Model           string
	ExtractAttempts int
	StageLog        *framework.StageLog
	Logger          *slog.Logger
	Telemetry       framework.Telemetry
	Progress        *framework.Progress
}

// Run executes the formulation stages for problemDir inside runDir and
// returns the final state with Program set.
func (p *Pipeline) Run(ctx context.Context, problemDir, runDir string) (*formulation.State, error) {
	snaps := formulation.NewSnapshots(runDir)
	state, err := formulation.FromInput(problemDir, runDir)
	if err != nil {
		return nil, fmt.Errorf("stage parameters: %w", err)
	}
	if err := snaps.Save(formulation.SnapshotParams, state); err != nil {
		return nil, err
	}
	p.Progress.Info("Loaded %d parameters", state.Parameters.Len())

	state, err = p.extractConcurrently(ctx, state)
	if err != nil {
		return nil, err
	}
	if err := snaps.Save(formulation.SnapshotObjective, state); err != nil {
		return nil, err
	}
	if err := snaps.Save(formulation.SnapshotConstraints, state); err != nil {
		return nil, err
	}
	p.Progress.Info("Objective: %s", state.Objective.Description)
	p.Progress.Info("Extracted %d constraints", len(state.Constraints))

	steps := []struct {
		name     string
		snapshot string
		run      func(context.Context, *formulation.State) (*formulation.State, error)
	}{
		{StageConstraintModel, formulation.SnapshotConstraintsModeled, p.FormulateConstraints},
		{StageObjectiveModel, formulation.SnapshotObjectiveModeled, p.FormulateObjective},
		{StageCode, formulation.SnapshotCode, p.GenerateCode},
	}
	for _, step := range steps {
		next, err := p.stage(ctx, step.name, state, step.run)
		if err != nil {
			return nil, err
		}
		state = next
		if step.name == StageCode {
			state.Program = Assemble(state)
		}
		if err := snaps.Save(step.snapshot, state); err != nil {
			return nil, err
		}
		p.Progress.Info("Finished %s", step.name)
	}
	return state, nil
}

// extractConcurrently runs objective and constraint extraction side by side;
// both read only the description and parameters.
func (p *Pipeline) extractConcurrently(ctx context.Context, state *formulation.State) (*formulation.State, error) {
	var objective, constraints *formulation.State
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		var err error
		objective, err = p.stage(gctx, StageObjective, state, p.ExtractObjective)
		return err
	})
	g.Go(func() error {
		var err error
		constraints, err = p.stage(gctx, StageConstraints, state, p.ExtractConstraints)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := objective.Clone()
	merged.Constraints = constraints.Clone().Constraints
	return merged, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, in *formulation.State, run func(context.Context, *formulation.State) (*formulation.State, error)) (*formulation.State, error) {
	start := time.Now()
	p.emit(ctx, framework.EventStageStart, name, nil)
	p.StageLog.Log(fmt.Sprintf("=== %s ===", name))
	out, err := run(ctx, in)
	if err != nil {
		p.emit(ctx, framework.EventStageError, name, map[string]interface{}{"error": err.Error()})
		p.logger().Error("stage failed", "stage", name, "error", err)
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	p.emit(ctx, framework.EventStageFinish, name, map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()})
	p.logger().Info("stage finished", "stage", name, "duration", time.Since(start).Round(time.Millisecond))
	return out, nil
}

// ask sends prompt and parses the reply, re-asking once when the reply cannot
// be parsed.
func ask[T any](ctx context.Context, p *Pipeline, stage, prompt string, parse func(string) (T, error)) (T, error) {
	attempts := p.ExtractAttempts
	if attempts <= 0 {
		attempts = DefaultExtractAttempts
	}
	return extract.Retry(ctx, attempts, func(ctx context.Context) (T, error) {
		var zero T
		resp, err := p.Gateway.Complete(ctx, prompt, p.model())
		if err != nil {
			return zero, err
		}
		p.StageLog.Log(resp)
		out, err := parse(resp)
		if err != nil {
			p.logger().Warn("could not parse model reply", "stage", stage, "error", err)
			return zero, extract.WithStage(err, stage)
		}
		return out, nil
	})
}

func (p *Pipeline) model() string {
	if p.Model == "" {
		return DefaultModel
	}
	return p.Model
}

func (p *Pipeline) emit(ctx context.Context, typ framework.EventType, stage string, meta map[string]interface{}) {
	if p.Telemetry == nil {
		return
	}
	p.Telemetry.Emit(framework.Event{
		Type:      typ,
		RunID:     framework.RunIDFrom(ctx),
		Solver:    "optimus",
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	})
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
