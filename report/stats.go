package report

import (
	"regexp"
	"strconv"
	"strings"
)

// SolverStats are the solver figures quoted in the report. Fields the log
// does not mention stay nil and are left out of the verdict.
type SolverStats struct {
	BestObjective *float64 `json:"best_objective,omitempty"`
	BestBound     *float64 `json:"best_bound,omitempty"`
	MIPGapPct     *float64 `json:"mip_gap_pct,omitempty"`
	SolveTimeS    *float64 `json:"solve_time_s,omitempty"`
	NodesExplored *int     `json:"nodes_explored,omitempty"`
	StatusDetail  string   `json:"status_detail,omitempty"`
}

// Empty reports whether nothing was recognized.
func (s SolverStats) Empty() bool {
	return s == SolverStats{}
}

var (
	gapLine   = regexp.MustCompile(`Best objective\s+([\d.e+\-]+),\s*best bound\s+([\d.e+\-]+),\s*gap\s+([\d.]+)%`)
	solveTime = regexp.MustCompile(`in\s+\d+\s+iterations?\s+and\s+([\d.]+)\s+seconds?`)
	explored  = regexp.MustCompile(`Explored\s+(\d+)\s+nodes?`)
)

// ParseSolverStats scans a Gurobi log for the summary lines.
func ParseSolverStats(log string) SolverStats {
	var s SolverStats
	if log == "" {
		return s
	}
	if m := gapLine.FindStringSubmatch(log); m != nil {
		obj, bound, gap := parseFloat(m[1]), parseFloat(m[2]), parseFloat(m[3])
		if obj != nil && bound != nil && gap != nil {
			s.BestObjective, s.BestBound, s.MIPGapPct = obj, bound, gap
		}
	}
	if m := solveTime.FindStringSubmatch(log); m != nil {
		s.SolveTimeS = parseFloat(m[1])
	}
	if m := explored.FindStringSubmatch(log); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			s.NodesExplored = &n
		}
	}
	switch {
	case strings.Contains(log, "Optimal solution found"):
		s.StatusDetail = "Optimal solution found"
	case strings.Contains(log, "Time limit reached"):
		s.StatusDetail = "Time limit reached"
	}
	return s
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
