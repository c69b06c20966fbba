package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/judge"
)

func newJudgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "judge",
		Short: "Compare the two solver runs and write final_output/verdict.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := framework.NewProgress(cmd.OutOrStdout())
			svc, err := newServices(out, dir)
			if err != nil {
				return err
			}
			defer svc.Close()

			v, err := svc.engine().Judge(cmd.Context(), dir)
			if err != nil {
				return err
			}
			out.Text(judge.Summary(v))
			return nil
		},
	}
}
