package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the interpreter, gurobipy, the OptiMind server and API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig()
			results := doctor.Check(cmd.Context(), doctor.Options{
				Interpreter: cfg.Repair.Interpreter,
				OptiMindURL: cfg.OptiMindURL(globalEnv),
				Keys: map[string]string{
					"ANTHROPIC_API_KEY": globalEnv.AnthropicAPIKey,
					"OPENAI_API_KEY":    globalEnv.OpenAIAPIKey,
					"GROQ_API_KEY":      globalEnv.GroqAPIKey,
				},
			})
			t := table.New().Border(lipgloss.NormalBorder()).Headers("CHECK", "STATUS", "DETAILS")
			for _, r := range results {
				t.Row(r.Name, r.Status, r.Details)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			if !doctor.Healthy(results) {
				return errors.New("some prerequisites are missing")
			}
			return nil
		},
	}
}
