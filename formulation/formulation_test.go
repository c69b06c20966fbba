package formulation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleParams = `{
  "NumProducts": {"definition": "Number of products", "type": "integer", "shape": [], "value": 2},
  "Profit": {"definition": "Profit per unit", "type": "float", "shape": "[NumProducts]", "value": [3.5, 4.0]},
  "Capacity": {"definition": "Machine hours", "type": "float", "shape": ["NumProducts", 2], "value": [[1, 2], [3, 4]]}
}`

func writeInput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model_input")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "params.json"), []byte(sampleParams), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "desc.txt"), []byte("Maximize profit.\n"), 0o644))
	return dir
}

func TestFromInputSplitsValues(t *testing.T) {
	dir := writeInput(t)
	runDir := filepath.Join(dir, "optimus_output")

	state, err := FromInput(dir, runDir)
	require.NoError(t, err)
	assert.Equal(t, "Maximize profit.\n", state.Description)
	assert.Equal(t, []string{"NumProducts", "Profit", "Capacity"}, state.Parameters.Keys())

	profit, ok := state.Parameters.Get("Profit")
	require.True(t, ok)
	assert.Equal(t, []any{"NumProducts"}, profit.Shape)
	capacity, _ := state.Parameters.Get("Capacity")
	assert.Equal(t, []any{"NumProducts", 2}, capacity.Shape)

	raw, err := os.ReadFile(filepath.Join(runDir, "data.json"))
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.EqualValues(t, 2, data["NumProducts"])
	assert.Len(t, data["Profit"], 2)

	assert.NotContains(t, state.ParametersJSON(), "value")
}

func TestFromInputMissingFiles(t *testing.T) {
	_, err := FromInput(t.TempDir(), t.TempDir())
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	state := &State{Description: "d"}
	state.Parameters.Set("N", Parameter{Definition: "n", Type: "integer", Shape: []any{}})
	state.Variables.Set("x", Variable{Definition: "x", Type: "continuous", Shape: []any{"N"}})
	state.Objective = &Item{Description: "max", Formulation: Str("\\max x")}
	state.Constraints = []Item{{Description: "c1"}}

	cp := state.Clone()
	cp.Constraints[0].Formulation = Str("x \\leq 1")
	*cp.Objective.Formulation = "changed"
	cp.Variables.Set("y", Variable{Definition: "y"})
	v, _ := cp.Variables.Get("x")
	v.Shape[0] = "M"

	assert.Nil(t, state.Constraints[0].Formulation)
	assert.Equal(t, "\\max x", *state.Objective.Formulation)
	assert.Equal(t, 1, state.Variables.Len())
	orig, _ := state.Variables.Get("x")
	assert.Equal(t, "N", orig.Shape[0])
}

func TestSnapshotsRoundTripKeepsOrder(t *testing.T) {
	snaps := NewSnapshots(t.TempDir())
	state := &State{Description: "d"}
	state.Parameters.Set("Zeta", Parameter{Definition: "z", Type: "float", Shape: []any{}})
	state.Parameters.Set("Alpha", Parameter{Definition: "a", Type: "float", Shape: []any{}})
	state.Objective = &Item{Description: "min cost"}

	require.NoError(t, snaps.Save(SnapshotParams, state))
	loaded, err := snaps.Load(SnapshotParams)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zeta", "Alpha"}, loaded.Parameters.Keys())
	assert.Equal(t, "min cost", loaded.Objective.Description)
	assert.Nil(t, loaded.Objective.Formulation)

	raw, err := os.ReadFile(snaps.Path(SnapshotParams))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"parameters\": {")
}

func TestOrderedMapSetIfAbsent(t *testing.T) {
	var m OrderedMap[int]
	assert.True(t, m.SetIfAbsent("a", 1))
	assert.False(t, m.SetIfAbsent("a", 2))
	v, _ := m.Get("a")
	assert.Equal(t, 1, v)
}

func TestOrderedMapRejectsNonObject(t *testing.T) {
	var m OrderedMap[int]
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, 0, m.Len())
}
