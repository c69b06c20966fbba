package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/judge"
	"github.com/lexcodex/optima/llm"
	"github.com/lexcodex/optima/repair"
	"github.com/lexcodex/optima/solver"
	"github.com/lexcodex/optima/verdict"
)

const (
	DefaultModel = "gpt-4o"
	ReportFile   = "report.md"
	BaselineFile = "baseline.txt"
)

// ErrAlreadyEnriched is returned when the verdict already carries a report
// summary. Re-judging writes a fresh verdict.
var ErrAlreadyEnriched = errors.New("verdict already carries a report summary")

var executiveSummary = regexp.MustCompile(`(?s)## Executive Summary\s*\n(.*?)\n## `)

// Report is the consultant's output.
type Report struct {
	Markdown         string
	ExecutiveSummary string
	HasBaseline      bool
	Stats            SolverStats
	Path             string
}

// Consultant turns a verdict into a client-facing Markdown report and adds
// its summary fields to the verdict.
type Consultant struct {
	Gateway   llm.Gateway
	Model     string
	Logger    *slog.Logger
	Telemetry framework.Telemetry
	Progress  *framework.Progress
}

// Generate writes final_output/report.md for problemDir and enriches the
// verdict with executive_summary, has_baseline_comparison and gurobi_stats.
func (c *Consultant) Generate(ctx context.Context, problemDir string) (Report, error) {
	var rep Report
	store := verdict.NewStore(problemDir)
	if summary, err := store.Get("executive_summary"); err == nil && summary.Exists() {
		return rep, fmt.Errorf("%w: %s", ErrAlreadyEnriched, store.Path())
	}
	in, err := LoadInputs(problemDir)
	if err != nil {
		return rep, err
	}
	rep.HasBaseline = in.HasBaseline()
	rep.Stats = in.Stats

	objective := "None"
	if in.Verdict.ObjectiveValue != nil {
		objective = judge.FormatObjective(*in.Verdict.ObjectiveValue)
	}
	baseline := "not provided"
	if rep.HasBaseline {
		baseline = "provided"
	}
	c.Progress.Banner("Consultant")
	c.Progress.Field("Winner", in.Verdict.Winner)
	c.Progress.Field("Objective", objective)
	c.Progress.Field("Baseline", baseline)
	c.Progress.Info("Generating report...")

	start := time.Now()
	markdown, err := c.Gateway.Complete(ctx, Prompt(in), c.model())
	if err != nil {
		return rep, fmt.Errorf("generate report: %w", err)
	}
	rep.Markdown = markdown
	if m := executiveSummary.FindStringSubmatch(markdown); m != nil {
		rep.ExecutiveSummary = strings.TrimSpace(m[1])
	}
	c.logger().Info("report generated", "chars", len(markdown), "duration", time.Since(start))

	rep.Path = filepath.Join(problemDir, verdict.Dir, ReportFile)
	if err := framework.WriteFileAtomic(rep.Path, []byte(markdown), 0o644); err != nil {
		return rep, fmt.Errorf("write report: %w", err)
	}
	c.Progress.Info("Report written to %s", rep.Path)

	if err := store.Enrich(map[string]any{
		"executive_summary":       rep.ExecutiveSummary,
		"has_baseline_comparison": rep.HasBaseline,
		"gurobi_stats":            rep.Stats,
	}); err != nil {
		return rep, fmt.Errorf("enrich verdict: %w", err)
	}
	c.Progress.Info("Verdict enriched at %s", store.Path())
	if c.Telemetry != nil {
		c.Telemetry.Emit(framework.Event{
			Type:      framework.EventStageFinish,
			RunID:     framework.RunIDFrom(ctx),
			Stage:     "report",
			Timestamp: time.Now().UTC(),
			Message:   "report written",
			Metadata: map[string]interface{}{
				"path":         rep.Path,
				"has_baseline": rep.HasBaseline,
				"summary_len":  len(rep.ExecutiveSummary),
			},
		})
	}
	return rep, nil
}

// LoadInputs gathers the verdict, the problem inputs and the winning run's
// artifacts.
func LoadInputs(problemDir string) (Inputs, error) {
	var in Inputs
	v, err := verdict.NewStore(problemDir).Read()
	if err != nil {
		return in, fmt.Errorf("%w; run the judge first", err)
	}
	in.Verdict = v

	modelDir := filepath.Join(problemDir, "model_input")
	if in.Description, err = readTrimmed(filepath.Join(modelDir, "desc.txt")); err != nil {
		return in, err
	}
	if in.Baseline, err = readTrimmed(filepath.Join(modelDir, BaselineFile)); err != nil {
		return in, err
	}
	params, err := readTrimmed(filepath.Join(modelDir, "params.json"))
	if err != nil {
		return in, err
	}
	if in.Params, err = SummarizeParams([]byte(params)); err != nil {
		return in, err
	}

	outDir := filepath.Join(problemDir, solver.OptiMUSDir)
	codeFile := repair.OptiMUSVariant().CanonicalFile
	if v.Winner == string(judge.OptiMind) {
		outDir = filepath.Join(problemDir, solver.OptiMindDir)
		codeFile = repair.OptiMindVariant().CanonicalFile
	} else if state, err := formulation.NewSnapshots(outDir).Load(formulation.SnapshotCode); err == nil {
		in.State = state
	}
	if in.Code, err = readTrimmed(filepath.Join(outDir, codeFile)); err != nil {
		return in, err
	}
	if in.Log, err = readTrimmed(filepath.Join(outDir, repair.OutputFile)); err != nil {
		return in, err
	}
	in.Stats = ParseSolverStats(in.Log)
	return in, nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Consultant) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c *Consultant) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger.With("component", "consultant")
	}
	return slog.Default().With("component", "consultant")
}
