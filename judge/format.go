package judge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lexcodex/optima/formulation"
)

const fence = "```"

var responseCodeStart = regexp.MustCompile("```(?:python)?")

// FormatOptiMUS summarizes the OptiMUS run for the comparison prompt.
func FormatOptiMUS(s *SolverOutput) string {
	if !s.IsAvailable() {
		return "OptiMUS: No output available.\n"
	}
	parts := header("OptiMUS", s)
	if st := s.State; st != nil {
		parts = append(parts, formatState(st)...)
	}
	return strings.Join(append(parts, footer(s)...), "\n")
}

// FormatOptiMind summarizes the OptiMind run. The model's reasoning is shown
// up to its first code fence; the code itself follows separately.
func FormatOptiMind(s *SolverOutput) string {
	if !s.IsAvailable() {
		return "OptiMind: No output available.\n"
	}
	parts := header("OptiMind", s)
	if s.Response != nil {
		reasoning := strings.TrimSpace(responseCodeStart.Split(*s.Response, 2)[0])
		if reasoning != "" {
			parts = append(parts, "\nModel Reasoning & Formulation:\n"+reasoning)
		}
	}
	return strings.Join(append(parts, footer(s)...), "\n")
}

func header(name string, s *SolverOutput) []string {
	parts := []string{
		fmt.Sprintf("=== %s Solution ===", name),
		"Execution status: " + s.Status.Label(),
	}
	if s.Objective != nil {
		parts = append(parts, "Objective value: "+FormatObjective(*s.Objective))
	}
	return parts
}

func footer(s *SolverOutput) []string {
	var parts []string
	if s.Code != nil {
		parts = append(parts, fmt.Sprintf("\nGenerated Code:\n%spython\n%s\n%s", fence, *s.Code, fence))
	}
	if s.LogClean != "" {
		parts = append(parts, "\nExecution Output:\n"+s.LogClean)
	}
	return parts
}

func formatState(st *formulation.State) []string {
	var parts []string
	desc, form := "N/A", "N/A"
	if st.Objective != nil {
		desc = orNA(st.Objective.Description)
		form = orNA(deref(st.Objective.Formulation))
	}
	parts = append(parts, "\nObjective: "+desc, "Formulation: "+form)

	if len(st.Constraints) > 0 {
		parts = append(parts, fmt.Sprintf("\nConstraints (%d):", len(st.Constraints)))
		for i, c := range st.Constraints {
			parts = append(parts,
				fmt.Sprintf("  %d. %s", i+1, orNA(c.Description)),
				"     Formulation: "+orNA(deref(c.Formulation)))
		}
	}
	if st.Variables.Len() > 0 {
		parts = append(parts, fmt.Sprintf("\nVariables (%d):", st.Variables.Len()))
		for _, name := range st.Variables.Keys() {
			v, _ := st.Variables.Get(name)
			parts = append(parts, fmt.Sprintf("  %s: %s (%s)", name, orNA(v.Definition), orNA(v.Type)))
		}
	}
	return parts
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
