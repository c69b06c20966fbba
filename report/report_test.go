package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/lexcodex/optima/verdict"
)

const gurobiLog = `Optimize a model with 3 rows, 2 columns and 6 nonzeros
Explored 1 nodes (2 simplex iterations) in 0.01 seconds (0.00 work units)
Solved in 2 iterations and 0.02 seconds (0.00 work units)
Optimal solution found (tolerance 1.00e-04)
Best objective 2.800000000000e+02, best bound 2.800000000000e+02, gap 0.0000%
`

func TestParseSolverStats(t *testing.T) {
	s := ParseSolverStats(gurobiLog)
	require.NotNil(t, s.BestObjective)
	assert.Equal(t, 280.0, *s.BestObjective)
	assert.Equal(t, 280.0, *s.BestBound)
	assert.Equal(t, 0.0, *s.MIPGapPct)
	assert.Equal(t, 0.02, *s.SolveTimeS)
	assert.Equal(t, 1, *s.NodesExplored)
	assert.Equal(t, "Optimal solution found", s.StatusDetail)

	assert.True(t, ParseSolverStats("").Empty())
	assert.Equal(t, "Time limit reached", ParseSolverStats("Time limit reached\n").StatusDetail)
}

func TestSummarizeParams(t *testing.T) {
	long := make([]string, 12)
	for i := range long {
		long[i] = string(rune('0' + i%10))
	}
	params := `{
		"demand": {"value": [` + strings.Join(long, ",") + `], "definition": "Demand", "shape": [12], "type": "int"},
		"capacity": {"value": 40, "definition": "Capacity"},
		"names": {"value": ["a","b","c","d","e","f","g","h","i","j","k"], "shape": [11]}
	}`
	out, err := SummarizeParams([]byte(params))
	require.NoError(t, err)

	doc := gjson.Parse(out)
	var keys []string
	doc.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"demand", "capacity", "names"}, keys)

	assert.Equal(t, int64(12), doc.Get("demand.count").Int())
	assert.Equal(t, 0.0, doc.Get("demand.min").Float())
	assert.Equal(t, 9.0, doc.Get("demand.max").Float())
	assert.Equal(t, "Vector of 12 values (summarized)", doc.Get("demand.note").String())
	assert.Len(t, doc.Get(`demand.sample \(first 5\)`).Array(), 5)
	assert.False(t, doc.Get("demand.value").Exists())

	assert.Equal(t, "float", doc.Get("capacity.type").String())
	assert.Equal(t, int64(40), doc.Get("capacity.value").Int())
	assert.Equal(t, "[]", doc.Get("capacity.shape").Raw)

	assert.Len(t, doc.Get("names.value").Array(), 10)
	assert.Equal(t, "Showing first 10 of 11 values", doc.Get("names.note").String())

	empty, err := SummarizeParams(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}

type fakeGateway struct {
	reply  string
	prompt string
}

func (g *fakeGateway) Complete(_ context.Context, prompt, _ string) (string, error) {
	g.prompt = prompt
	return g.reply, nil
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixture(t *testing.T, baseline bool) string {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "model_input", "desc.txt"), "Maximize chair profit.")
	write(t, filepath.Join(dir, "model_input", "params.json"), `{"profit": {"value": 30, "definition": "Profit per chair"}}`)
	if baseline {
		write(t, filepath.Join(dir, "model_input", "baseline.txt"), "We build 10 chairs a week.")
	}
	write(t, filepath.Join(dir, "optimind_output", "optimind_code.py"), "m.optimize()")
	write(t, filepath.Join(dir, "optimind_output", "code_output.txt"), gurobiLog)
	obj := 280.0
	require.NoError(t, verdict.NewStore(dir).Write(verdict.Verdict{
		Winner:         "optimind",
		ObjectiveValue: &obj,
		Direction:      "maximize",
		Solvers: verdict.Solvers{
			OptiMUS:  verdict.SolverStatus{Status: "error"},
			OptiMind: verdict.SolverStatus{Status: "success", ObjectiveValue: &obj},
		},
		Reasoning: "Only OptiMind ran.",
	}))
	return dir
}

const reportMarkdown = `## Problem Statement

> Maximize chair profit.

## Executive Summary

Build 28 chairs a week for $280 profit.

## Key Recommendations

1. Build chairs.
`

func TestGenerateWritesReportAndEnriches(t *testing.T) {
	dir := fixture(t, true)
	g := &fakeGateway{reply: reportMarkdown}
	c := &Consultant{Gateway: g}

	rep, err := c.Generate(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "Build 28 chairs a week for $280 profit.", rep.ExecutiveSummary)
	assert.True(t, rep.HasBaseline)

	data, err := os.ReadFile(filepath.Join(dir, "final_output", "report.md"))
	require.NoError(t, err)
	assert.Equal(t, reportMarkdown, string(data))

	store := verdict.NewStore(dir)
	raw, err := store.Raw()
	require.NoError(t, err)
	assert.Equal(t, "Build 28 chairs a week for $280 profit.", gjson.GetBytes(raw, "executive_summary").String())
	assert.True(t, gjson.GetBytes(raw, "has_baseline_comparison").Bool())
	assert.Equal(t, 0.02, gjson.GetBytes(raw, "gurobi_stats.solve_time_s").Float())
	assert.Equal(t, "optimind", gjson.GetBytes(raw, "winner").String())

	assert.Contains(t, g.prompt, "## Client's Current Baseline Strategy\n\nWe build 10 chairs a week.")
	assert.Contains(t, g.prompt, "Winner: OPTIMIND\nObjective value: 280.0\nDirection: maximize\nSolver status: success")
	assert.Contains(t, g.prompt, "The solver reported a MIP gap of 0.0%.")
	assert.Contains(t, g.prompt, "Include the full solver code in a ```python code block.")

	_, err = c.Generate(context.Background(), dir)
	require.ErrorIs(t, err, ErrAlreadyEnriched)
}

func TestGenerateWithoutBaseline(t *testing.T) {
	dir := fixture(t, false)
	g := &fakeGateway{reply: "no sections here"}
	rep, err := (&Consultant{Gateway: g}).Generate(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, rep.ExecutiveSummary)
	assert.False(t, rep.HasBaseline)
	assert.Contains(t, g.prompt, "No baseline strategy was provided")
	assert.NotContains(t, g.prompt, "Client's Current Baseline Strategy")
}

func TestGenerateRequiresVerdict(t *testing.T) {
	_, err := (&Consultant{Gateway: &fakeGateway{}}).Generate(context.Background(), t.TempDir())
	require.ErrorIs(t, err, verdict.ErrNotFound)
}
