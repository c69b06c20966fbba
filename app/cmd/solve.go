package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/solver"
)

func newSolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "solve [optimus|optimind]",
		Short:     "Run one solver against the staged problem",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"optimus", "optimind"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := framework.NewProgress(cmd.OutOrStdout())
			svc, err := newServices(out, dir)
			if err != nil {
				return err
			}
			defer svc.Close()

			var s solver.Solver = svc.optimus()
			if args[0] == "optimind" {
				s = svc.optimind()
			}
			out.Banner(fmt.Sprintf("SOLVE: %s", s.Name()))
			res := s.Run(cmd.Context(), dir)
			reportSolver(out, res)
			if res.Err != nil {
				return res.Err
			}
			if !res.Success {
				return fmt.Errorf("%s finished without a solution (%s)", res.Solver, res.Outcome.State)
			}
			return nil
		},
	}
}
