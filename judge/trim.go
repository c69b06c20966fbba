package judge

import (
	"regexp"
	"strings"
)

// DefaultTrimLines bounds the solver log shown to the judge.
const DefaultTrimLines = 15

var solverNoisePrefixes = []string{
	"Set parameter",
	"Academic license",
	"Gurobi Optimizer version",
	"CPU model:",
	"Thread count",
	"Model fingerprint",
	"Coefficient statistics",
	"Matrix range",
	"Objective range",
	"Bounds range",
	"RHS range",
	"Presolve removed",
	"Presolve time",
	"Presolved:",
	"Variable types:",
	"Root relaxation:",
	"Explored ",
	"Iteration ",
	"Nodes",
	"Expl Unexpl",
	"Found heuristic",
}

var progressRow = regexp.MustCompile(`^\s*\d`)

// TrimSolverLog drops the solver's banner, statistics and node-log table and
// keeps the last maxLines remaining lines. When every line is noise the last
// five raw lines are returned instead so the reader still sees something.
func TrimSolverLog(log string, maxLines int) string {
	if log == "" {
		return log
	}
	if maxLines <= 0 {
		maxLines = DefaultTrimLines
	}
	lines := strings.Split(strings.TrimSpace(log), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isSolverNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return strings.Join(tail(lines, 5), "\n")
	}
	return strings.Join(tail(kept, maxLines), "\n")
}

func isSolverNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "*") {
		return true
	}
	if strings.Contains(line, "|") && progressRow.MatchString(line) {
		return true
	}
	for _, p := range solverNoisePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func tail(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
