package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/persistence"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or print the stored verdict of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.OpenSQLiteRunStore(historyPath())
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(run.Verdict) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "run %s produced no verdict: %s\n", run.ID, run.Error)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(run.Verdict))
				return nil
			}

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), historyTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func historyTable(runs []persistence.RunRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STARTED", "WINNER", "OBJECTIVE", "OPTIMUS", "OPTIMIND", "ERROR")
	for _, r := range runs {
		objective := "-"
		if r.Objective != nil {
			objective = fmt.Sprintf("%g", *r.Objective)
		}
		t.Row(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			orDash(r.Winner),
			objective,
			orDash(r.OptiMUSStatus),
			orDash(r.OptiMindStatus),
			orDash(clip(r.Error, 40)),
		)
	}
	return t.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
