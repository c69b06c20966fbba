package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/judge"
	"github.com/lexcodex/optima/persistence"
	"github.com/lexcodex/optima/solver"
	"github.com/lexcodex/optima/verdict"
	"github.com/lexcodex/optima/workspace"
)

const runSteps = 6

type runOptions struct {
	desc        string
	data        string
	params      string
	uploadDir   string
	noArchive   bool
	skipPrepare bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: prepare, stage, convert, solve, judge, report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.data != "" && opts.desc == "" {
				return errors.New("--data requires --desc")
			}
			return runPipeline(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.desc, "desc", "", "Problem description (.txt)")
	cmd.Flags().StringVar(&opts.data, "data", "", "Parameter data (.csv), requires --desc")
	cmd.Flags().StringVar(&opts.params, "params", "", "Structured params.json; skips the raw-to-model conversion")
	cmd.Flags().StringVar(&opts.uploadDir, "upload-dir", "", "Directory scanned for inputs when --desc is absent (default data_upload)")
	cmd.Flags().BoolVar(&opts.noArchive, "no-archive", false, "Clear the workspace without archiving the previous run")
	cmd.Flags().BoolVar(&opts.skipPrepare, "skip-prepare", false, "Reuse the workspace as is")
	return cmd
}

func runPipeline(ctx context.Context, cmd *cobra.Command, opts runOptions) error {
	started := time.Now()
	cfg := currentConfig()
	out := framework.NewProgress(cmd.OutOrStdout())
	out.Banner("OPTIMA PIPELINE")
	out.Field("Workspace", dir)

	// Step 1: prepare.
	out.Step(1, runSteps, "Prepare workspace")
	if opts.skipPrepare {
		out.Info("Skipped; reusing %s", dir)
	} else {
		archived, err := newWorkspace().Prepare(!opts.noArchive)
		if err != nil {
			return fmt.Errorf("prepare workspace: %w", err)
		}
		if archived != "" {
			out.OK("Archived previous run -> %s", archived)
		}
		out.OK("Workspace cleared")
	}

	// Step 2: stage inputs.
	out.Step(2, runSteps, "Stage inputs")
	if err := stage(out, cfg.Workspace.UploadDir, opts); err != nil {
		return err
	}

	svc, err := newServices(out, dir)
	if err != nil {
		return err
	}
	defer svc.Close()

	record := persistence.NewRunRecord(dir, started)
	ctx = framework.WithRunID(ctx, record.ID)
	svc.telemetry.Emit(framework.Event{Type: framework.EventRunStart, RunID: record.ID, Message: dir, Timestamp: started.UTC()})

	v, runErr := runStages(ctx, svc, opts)
	finishRun(ctx, svc, record, v, runErr)
	return runErr
}

func stage(out *framework.Progress, uploadDir string, opts runOptions) error {
	in := workspace.Inputs{Description: opts.desc, CSV: opts.data, Params: opts.params}
	if in.Description == "" {
		if opts.skipPrepare && workspace.HasModelInput(dir) {
			out.Info("Using staged inputs in %s", filepath.Join(dir, workspace.ModelInputDir))
			return nil
		}
		if opts.uploadDir != "" {
			uploadDir = opts.uploadDir
		}
		up, err := workspace.DiscoverUploads(pick(uploadDir, workspace.DefaultUploadDir))
		if err != nil {
			return err
		}
		in.Description, in.CSV = up.Description, up.CSV
	}
	staged, err := workspace.StageInputs(dir, in)
	if err != nil {
		return err
	}
	out.Field("Desc", staged.RawDesc)
	if staged.RawCSV != "" {
		out.Field("Data", staged.RawCSV)
	} else {
		out.Field("Data", "(none, text-only mode)")
	}
	return nil
}

func runStages(ctx context.Context, svc *services, opts runOptions) (*verdict.Verdict, error) {
	out := svc.progress

	// Step 3: raw -> model input.
	out.Step(3, runSteps, "Convert raw input")
	if workspace.HasModelInput(dir) {
		out.Info("model_input already present")
	} else {
		if err := workspace.Convert(ctx, svc.runner, dir, svc.cfg.Converter.Command); err != nil {
			if errors.Is(err, workspace.ErrNoConverter) {
				return nil, fmt.Errorf("%w: pass --params or set converter.command", err)
			}
			return nil, err
		}
		out.OK("Converted -> %s", filepath.Join(dir, workspace.ModelInputDir))
	}

	// Step 4: both solvers side by side. A failed solver is a verdict input,
	// not a reason to stop the other.
	out.Step(4, runSteps, "Solve (OptiMUS + OptiMind)")
	solvers := []solver.Solver{svc.optimus(), svc.optimind()}
	results := make([]solver.Result, len(solvers))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range solvers {
		g.Go(func() error {
			results[i] = s.Run(gctx, dir)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range results {
		reportSolver(out, r)
	}

	// Step 5: judge.
	out.Step(5, runSteps, "Judge")
	v, err := svc.engine().Judge(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}
	if v.BothFailed {
		out.Warn("Winner: %s (neither solver succeeded)", strings.ToUpper(v.Winner))
	} else {
		out.OK("Winner: %s", strings.ToUpper(v.Winner))
	}

	// Step 6: consultant report. The verdict stands without it.
	out.Step(6, runSteps, "Consultant report")
	rep, err := svc.consultant().Generate(ctx, dir)
	if err != nil {
		svc.logger.Warn("report generation failed", "error", err)
		out.Warn("Report skipped: %v", err)
	} else {
		out.OK("Report -> %s", rep.Path)
	}

	out.Banner("RESULTS")
	out.Text(judge.Summary(v))
	return &v, nil
}

func reportSolver(out *framework.Progress, r solver.Result) {
	switch {
	case r.Err != nil:
		out.Fail("[%s] %v", r.Solver, r.Err)
	case r.Success && r.Outcome.ObjectiveRaw != "":
		out.OK("[%s] %s, objective %s", r.Solver, r.Outcome.State, r.Outcome.ObjectiveRaw)
	case r.Success:
		out.OK("[%s] %s", r.Solver, r.Outcome.State)
	default:
		out.Warn("[%s] %s", r.Solver, r.Outcome.State)
	}
}

func finishRun(ctx context.Context, svc *services, record *persistence.RunRecord, v *verdict.Verdict, runErr error) {
	finished := time.Now()
	svc.telemetry.Emit(framework.Event{
		Type:      framework.EventRunFinish,
		RunID:     record.ID,
		Timestamp: finished.UTC(),
		Metadata:  map[string]interface{}{"duration_ms": finished.Sub(record.StartedAt).Milliseconds(), "verdict": v != nil},
	})
	if err := record.Finish(v, runErr, finished); err != nil {
		svc.logger.Warn("could not encode verdict for history", "error", err)
	}
	store, err := persistence.OpenSQLiteRunStore(historyPath())
	if err != nil {
		svc.logger.Warn("run history unavailable", "error", err)
		return
	}
	defer store.Close()
	if err := store.Record(context.WithoutCancel(ctx), record); err != nil {
		svc.logger.Warn("could not record run", "id", record.ID, "error", err)
		return
	}
	svc.progress.Info("Run %s recorded", record.ID)
}

func historyPath() string {
	return pick(currentConfig().History.Path, persistence.DefaultHistoryPath)
}
