package verdict

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func f(v float64) *float64 { return &v }

func sample() Verdict {
	return Verdict{
		Winner:         "optimus",
		ObjectiveValue: f(280),
		Direction:      "maximize",
		Solvers: Solvers{
			OptiMUS:  SolverStatus{Status: "success", ObjectiveValue: f(280)},
			OptiMind: SolverStatus{Status: "error"},
		},
		Reasoning:          "OptiMUS ran.",
		OptiMUSAssessment:  "fine",
		OptiMindAssessment: "crashed",
		ProgrammaticReason: "OptiMUS succeeded (optimal), OptiMind failed (error)",
	}
}

func TestWriteKeyOrder(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(sample()))

	raw, err := store.Raw()
	require.NoError(t, err)
	var keys []string
	gjson.ParseBytes(raw).ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{
		"winner", "objective_value", "direction", "solvers", "reasoning",
		"optimus_assessment", "optimind_assessment", "programmatic_reason",
	}, keys)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"winner\": \"optimus\""))
	assert.Equal(t, "null", gjson.GetBytes(raw, "solvers.optimind.objective_value").Raw)
}

func TestReadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(sample()))
	v, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, sample(), v)
}

func TestReadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir()).Read()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEnrichIsAdditive(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(sample()))

	require.NoError(t, store.Enrich(map[string]any{
		"executive_summary":       "We recommend plan A.",
		"has_baseline_comparison": false,
		"gurobi_stats":            map[string]any{"solve_time_s": 0.5},
	}))

	v, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, sample(), v)

	summary, err := store.Get("executive_summary")
	require.NoError(t, err)
	assert.Equal(t, "We recommend plan A.", summary.String())
	stats, err := store.Get("gurobi_stats")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stats.Get("solve_time_s").Float(), 1e-9)

	raw, err := store.Raw()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"winner\""))
}

func TestEnrichRefusesOverwrite(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(sample()))
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	err = store.Enrich(map[string]any{"new_field": 1, "winner": "optimind"})
	require.ErrorIs(t, err, ErrFieldExists)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnrichTwiceSameKeyFails(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(sample()))
	require.NoError(t, store.Enrich(map[string]any{"executive_summary": "a"}))
	require.ErrorIs(t, store.Enrich(map[string]any{"executive_summary": "b"}), ErrFieldExists)
}

func TestEnrichFromSeparateStoresKeepsEveryField(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewStore(dir).Write(sample()))

	const writers = 16
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, NewStore(dir).Enrich(map[string]any{fmt.Sprintf("field_%02d", i): i}))
		}()
	}
	wg.Wait()

	store := NewStore(dir)
	for i := range writers {
		got, err := store.Get(fmt.Sprintf("field_%02d", i))
		require.NoError(t, err)
		assert.Equal(t, int64(i), got.Int())
	}
}

func TestStorePath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "final_output", "verdict.json"), NewStore(dir).Path())
}

func TestSolverStatusLabel(t *testing.T) {
	assert.Equal(t, "success", SolverStatusLabel(true, "optimal"))
	assert.Equal(t, "success", SolverStatusLabel(true, "feasible"))
	assert.Equal(t, "error", SolverStatusLabel(true, "error"))
	assert.Equal(t, "not_available", SolverStatusLabel(false, "optimal"))
}
