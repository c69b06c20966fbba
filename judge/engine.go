package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/llm"
	"github.com/lexcodex/optima/verdict"
)

// ErrNoVerdictPossible is returned when neither solver left any output.
var ErrNoVerdictPossible = errors.New("neither solver produced output; nothing to judge")

// ErrNoDescription is returned when the problem has no model_input/desc.txt.
var ErrNoDescription = errors.New("no problem description")

// Engine arbitrates between the two solver runs in a problem directory. The
// decision goes through three layers: execution facts, the judge model, and
// a final sanity check that the model's pick does not contradict the facts.
type Engine struct {
	Gateway   llm.Gateway
	Model     string
	Logger    *slog.Logger
	Telemetry framework.Telemetry
	Progress  *framework.Progress
}

// Judge loads both runs, decides a winner and writes final_output/verdict.json.
func (e *Engine) Judge(ctx context.Context, problemDir string) (verdict.Verdict, error) {
	var v verdict.Verdict
	logger := e.logger()

	problem, err := LoadProblem(problemDir)
	if err != nil {
		return v, err
	}
	if problem.Description == nil {
		return v, fmt.Errorf("%w at %s", ErrNoDescription, filepath.Join(problemDir, "model_input", "desc.txt"))
	}
	optimus, err := LoadOptiMUS(problemDir)
	if err != nil {
		return v, fmt.Errorf("load optimus output: %w", err)
	}
	optimind, err := LoadOptiMind(problemDir)
	if err != nil {
		return v, fmt.Errorf("load optimind output: %w", err)
	}
	if !optimus.IsAvailable() && !optimind.IsAvailable() {
		return v, ErrNoVerdictPossible
	}

	programmatic, reason := FastPath(optimus, optimind)
	var comparison Comparison
	if programmatic != nil {
		logger.Info("programmatic winner", "winner", *programmatic, "reason", reason)
		e.Progress.Info("Programmatic winner: %s (%s)", *programmatic, reason)
		e.Progress.Info("Calling LLM for quality assessment...")
		comparison, err = Compare(ctx, e.Gateway, e.model(), problem, optimus, optimind)
		if err != nil {
			return v, err
		}
		comparison.Winner = string(*programmatic)
		v.ProgrammaticReason = reason
	} else {
		if bothFailed(optimus, optimind) {
			logger.Warn("neither solver succeeded", "reason", reason)
			e.Progress.Warn("Neither solver succeeded: %s", reason)
			v.BothFailed = true
		} else {
			logger.Info("deferring to judge model", "reason", reason)
			e.Progress.Info("Both solvers have output. %s", reason)
		}
		e.Progress.Info("Calling LLM judge for comparison...")
		comparison, err = Compare(ctx, e.Gateway, e.model(), problem, optimus, optimind)
		if err != nil {
			return v, err
		}
	}

	winner, unknown := normalizeWinner(comparison.Winner)
	if unknown {
		logger.Warn("judge model returned an unrecognized winner", "winner", comparison.Winner)
	}
	final, overridden, why := SanityCheck(winner, optimus, optimind)
	if overridden {
		logger.Warn("override", "from", winner, "to", final, "reason", why)
		e.Progress.Warn("OVERRIDE: %s", why)
		v.OverrideReason = why
		e.emit(ctx, framework.EventOverride, why, map[string]interface{}{"from": string(winner), "to": string(final)})
	}
	if v.BothFailed {
		e.Progress.Warn("Winner: %s (neither solver succeeded)", final)
	} else {
		e.Progress.OK("Winner: %s", final)
	}

	direction := Direction(strings.ToLower(strings.TrimSpace(comparison.Direction)))
	if direction == "" || direction == DirectionUnknown {
		direction = DirectionUnknown
		for _, s := range []*SolverOutput{optimus, optimind} {
			if s != nil && s.Direction != "" {
				direction = s.Direction
				break
			}
		}
	}

	v.Winner = string(final)
	v.Direction = string(direction)
	v.Reasoning = comparison.Reasoning
	v.OptiMUSAssessment = comparison.OptiMUSAssessment
	v.OptiMindAssessment = comparison.OptiMindAssessment
	v.Solvers = verdict.Solvers{OptiMUS: snapshot(optimus), OptiMind: snapshot(optimind)}
	if final == OptiMUS {
		v.ObjectiveValue = objectiveOf(optimus)
	} else {
		v.ObjectiveValue = objectiveOf(optimind)
	}

	store := verdict.NewStore(problemDir)
	if err := store.Write(v); err != nil {
		return v, fmt.Errorf("write verdict: %w", err)
	}
	logger.Info("verdict written", "path", store.Path(), "winner", v.Winner)
	e.Progress.Info("Verdict written to %s", store.Path())
	e.emit(ctx, framework.EventVerdict, "verdict written", map[string]interface{}{
		"winner":     v.Winner,
		"direction":  v.Direction,
		"overridden": overridden,
	})
	return v, nil
}

func bothFailed(optimus, optimind *SolverOutput) bool {
	return !optimus.EffectiveStatus().Success() && !optimind.EffectiveStatus().Success()
}

// normalizeWinner maps the model's answer onto a variant. Anything else is
// reported as unknown and treated as an OptiMUS pick, which the sanity check
// then corrects if the facts disagree.
func normalizeWinner(raw string) (Variant, bool) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case OptiMUS:
		return OptiMUS, false
	case OptiMind:
		return OptiMind, false
	}
	return OptiMUS, true
}

func snapshot(s *SolverOutput) verdict.SolverStatus {
	if s == nil {
		return verdict.SolverStatus{Status: verdict.SolverStatusLabel(false, "")}
	}
	return verdict.SolverStatus{
		Status:         verdict.SolverStatusLabel(s.Available, string(s.Status)),
		ObjectiveValue: s.Objective,
	}
}

func objectiveOf(s *SolverOutput) *float64 {
	if s == nil {
		return nil
	}
	return s.Objective
}

func (e *Engine) model() string {
	if e.Model == "" {
		return DefaultModel
	}
	return e.Model
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger.With("component", "judge")
	}
	return slog.Default().With("component", "judge")
}

func (e *Engine) emit(ctx context.Context, typ framework.EventType, msg string, meta map[string]interface{}) {
	if e.Telemetry == nil {
		return
	}
	e.Telemetry.Emit(framework.Event{
		Type:      typ,
		RunID:     framework.RunIDFrom(ctx),
		Stage:     "judge",
		Timestamp: time.Now().UTC(),
		Message:   msg,
		Metadata:  meta,
	})
}

// Summary renders the closing block printed after judging.
func Summary(v verdict.Verdict) string {
	rule := strings.Repeat("=", 60)
	lines := []string{
		"",
		rule,
		"  Winner:    " + strings.ToUpper(v.Winner),
		"  Objective: " + formatObjectivePtr(v.ObjectiveValue),
		"  Direction: " + v.Direction,
		fmt.Sprintf("  OptiMUS:   %s (obj=%s)", v.Solvers.OptiMUS.Status, formatObjectivePtr(v.Solvers.OptiMUS.ObjectiveValue)),
		fmt.Sprintf("  OptiMind:  %s (obj=%s)", v.Solvers.OptiMind.Status, formatObjectivePtr(v.Solvers.OptiMind.ObjectiveValue)),
		"  Reasoning: " + v.Reasoning,
		rule,
	}
	if v.BothFailed {
		lines = append(lines[:len(lines)-1], "  Warning:   neither solver succeeded; winner is the judge model's pick", rule)
	}
	return strings.Join(lines, "\n")
}
