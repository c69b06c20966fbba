package judge

import "strings"

// Status classifies how a solver's program fared.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
	StatusNoResult   Status = "no_result"
	StatusNotRun     Status = "not_run"
)

// Success reports whether the status belongs to the success set, the only
// statuses that carry a usable objective value.
func (s Status) Success() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Label is the human description used in solver summaries and prompts.
func (s Status) Label() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL (proven optimal solution found)"
	case StatusFeasible:
		return "FEASIBLE (solution found, optimality not proven)"
	case StatusInfeasible:
		return "INFEASIBLE (no feasible solution exists)"
	case StatusUnbounded:
		return "UNBOUNDED (objective is unbounded)"
	case StatusError:
		return "ERROR (code crashed during execution)"
	case StatusNoResult:
		return "EXECUTED (code ran but produced no numeric result)"
	case StatusNotRun:
		return "NOT RUN"
	}
	return string(s)
}

// Classify derives a Status from the captured execution log and the parsed
// objective, nil when none was found. A nil log means the program never ran.
// Checks run in order; the first that matches wins.
func Classify(log *string, objective *float64) Status {
	if log == nil {
		return StatusNotRun
	}
	if strings.Contains(*log, "Traceback") || strings.Contains(*log, "Execution failed") {
		return StatusError
	}
	upper := strings.ToUpper(*log)
	optimal := strings.Contains(upper, "OPTIMAL")
	switch {
	case strings.Contains(upper, "INFEASIBLE") && !optimal:
		return StatusInfeasible
	case strings.Contains(upper, "UNBOUNDED") && !optimal:
		return StatusUnbounded
	case objective != nil && optimal:
		return StatusOptimal
	case objective != nil:
		return StatusFeasible
	}
	return StatusNoResult
}
