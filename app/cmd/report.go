package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/framework"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Write the consultant report for an existing verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := framework.NewProgress(cmd.OutOrStdout())
			svc, err := newServices(out, dir)
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := svc.consultant().Generate(cmd.Context(), dir)
			if err != nil {
				return err
			}
			out.OK("Report -> %s", rep.Path)
			if rep.ExecutiveSummary != "" {
				out.Text(rep.ExecutiveSummary)
			}
			return nil
		},
	}
}
