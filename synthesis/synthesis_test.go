package synthesis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/repair"
)

type routedGateway struct {
	mu     sync.Mutex
	routes []route
	calls  map[string]int
}

type route struct {
	match   string
	replies []string
	err     error
}

func (g *routedGateway) Complete(ctx context.Context, prompt, model string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	for _, r := range g.routes {
		if !strings.Contains(prompt, r.match) {
			continue
		}
		n := g.calls[r.match]
		g.calls[r.match]++
		if r.err != nil {
			return "", r.err
		}
		if n >= len(r.replies) {
			n = len(r.replies) - 1
		}
		return r.replies[n], nil
	}
	return "", errors.New("unexpected prompt")
}

func happyRoutes() []route {
	return []route{
		{match: "identify and extract the optimization objective", replies: []string{"=====\nOBJECTIVE: Maximize total profit\n====="}},
		{match: "extract every constraint", replies: []string{"Here:\n[\"Machine hours are limited\", \"Demand must be met\"]"}},
		{match: "model the following constraint", replies: []string{
			`{"FORMULATION": "$\\sum_i h_i x_i \\leq H$", "NEW VARIABLES": {"x": {"shape": "[NumProducts]", "type": "continuous", "definition": "units produced"}}}`,
			`{"FORMULATION": "$x_i \\geq d_i$", "NEW VARIABLES": {"x": {"shape": "[]", "type": "integer", "definition": "redefined"}, "y": {"shape": [], "type": "binary", "definition": "flag"}}, "AUXILIARY CONSTRAINTS": ["$y \\leq 1$"]}`,
		}},
		{match: "model the following objective", replies: []string{"=====\n$\\max \\sum_i p_i x_i$\n====="}},
		{match: "declares this decision variable", replies: []string{"=====\n```python\nx = model.addVars(NumProducts, vtype=GRB.CONTINUOUS, name=\"x\")\n```\n====="}},
		{match: "adds the following constraint", replies: []string{"=====\nmodel.addConstr(x[0] <= 10)\n====="}},
		{match: "sets the following objective", replies: []string{"=====\nmodel.setObjective(quicksum(x[i] for i in range(NumProducts)), GRB.MAXIMIZE)\n====="}},
	}
}

func writeProblem(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model_input")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	params := `{"NumProducts": {"definition": "Number of products", "type": "integer", "shape": [], "value": 2},
		"Profit": {"definition": "Profit per unit", "type": "float", "shape": "[NumProducts]", "value": [3, 4]}}`
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "params.json"), []byte(params), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "desc.txt"), []byte("A factory makes products."), 0o644))
	return dir
}

func newPipeline(t *testing.T, gw *routedGateway, runDir string) (*Pipeline, *framework.RecordingTelemetry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	stageLog, err := framework.NewStageLog(filepath.Join(runDir, "log.txt"), nil)
	require.NoError(t, err)
	rec := &framework.RecordingTelemetry{}
	return &Pipeline{
		Gateway:   gw,
		Model:     "claude-test",
		StageLog:  stageLog,
		Telemetry: rec,
		Progress:  framework.DiscardProgress(),
	}, rec
}

func TestPipelineRunProducesProgramAndSnapshots(t *testing.T) {
	dir := writeProblem(t)
	runDir := filepath.Join(dir, "optimus_output")
	gw := &routedGateway{routes: happyRoutes()}
	p, rec := newPipeline(t, gw, runDir)

	state, err := p.Run(context.Background(), dir, runDir)
	require.NoError(t, err)

	for _, name := range []string{
		formulation.SnapshotParams,
		formulation.SnapshotObjective,
		formulation.SnapshotConstraints,
		formulation.SnapshotConstraintsModeled,
		formulation.SnapshotObjectiveModeled,
		formulation.SnapshotCode,
	} {
		assert.FileExists(t, filepath.Join(runDir, name+".json"))
	}
	assert.FileExists(t, filepath.Join(runDir, "data.json"))

	assert.Equal(t, "Maximize total profit", state.Objective.Description)
	require.Len(t, state.Constraints, 3)
	assert.Equal(t, "Auxiliary constraint for: Demand must be met", state.Constraints[2].Description)
	assert.Equal(t, "$y \\leq 1$", *state.Constraints[2].Formulation)

	assert.Equal(t, []string{"x", "y"}, state.Variables.Keys())
	x, _ := state.Variables.Get("x")
	assert.Equal(t, "units produced", x.Definition)
	assert.Equal(t, []any{"NumProducts"}, x.Shape)

	prog := state.Program
	vars := strings.Index(prog, "### Define the variables")
	cons := strings.Index(prog, "### Define the constraints")
	obj := strings.Index(prog, "### Define the objective")
	opt := strings.Index(prog, "### Optimize the model")
	assert.True(t, vars < cons && cons < obj && obj < opt)
	assert.Contains(t, prog, `NumProducts = data["NumProducts"] # shape: [], definition: Number of products`)
	assert.Contains(t, prog, `Profit = data["Profit"] # shape: [NumProducts], definition: Profit per unit`)
	assert.Contains(t, prog, "x = model.addVars(NumProducts")
	assert.NotContains(t, prog, "```")

	loaded, err := formulation.NewSnapshots(runDir).Load(formulation.SnapshotCode)
	require.NoError(t, err)
	assert.Equal(t, prog, loaded.Program)

	logText, err := os.ReadFile(filepath.Join(runDir, "log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(logText), "OBJECTIVE: Maximize total profit")
	assert.Contains(t, string(logText), "NEW VARIABLE y: flag (binary)")

	assert.Len(t, rec.OfType(framework.EventStageFinish), 5)
}

func TestPipelineRetriesUnparseableReplyOnce(t *testing.T) {
	dir := writeProblem(t)
	runDir := filepath.Join(dir, "optimus_output")
	routes := happyRoutes()
	routes[0].replies = []string{"I think the objective is profit.", "=====\nOBJECTIVE: Maximize total profit\n====="}
	gw := &routedGateway{routes: routes}
	p, _ := newPipeline(t, gw, runDir)

	_, err := p.Run(context.Background(), dir, runDir)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.calls[routes[0].match])
}

func TestPipelineFailsAfterSecondUnparseableReply(t *testing.T) {
	dir := writeProblem(t)
	runDir := filepath.Join(dir, "optimus_output")
	routes := happyRoutes()
	routes[3].replies = []string{"no markers here"}
	gw := &routedGateway{routes: routes}
	p, _ := newPipeline(t, gw, runDir)

	_, err := p.Run(context.Background(), dir, runDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage objective formulation")
	assert.Equal(t, 2, gw.calls[routes[3].match])
	assert.NoFileExists(t, filepath.Join(runDir, formulation.SnapshotObjectiveModeled+".json"))
}

func TestPipelineGatewayErrorAbortsWithoutRetry(t *testing.T) {
	dir := writeProblem(t)
	runDir := filepath.Join(dir, "optimus_output")
	routes := happyRoutes()
	boom := errors.New("provider down")
	routes[1].err = boom
	gw := &routedGateway{routes: routes}
	p, _ := newPipeline(t, gw, runDir)

	_, err := p.Run(context.Background(), dir, runDir)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage constraint extraction")
	assert.Equal(t, 1, gw.calls[routes[1].match])
}

func TestAssembleIsAlreadyPatched(t *testing.T) {
	state := &formulation.State{}
	state.Parameters.Set("N", formulation.Parameter{Definition: "count", Type: "integer", Shape: []any{}})
	state.Objective = &formulation.Item{Description: "max", Code: formulation.Str("model.setObjective(1, GRB.MAXIMIZE)")}
	prog := Assemble(state)

	assert.True(t, strings.HasSuffix(prog, repair.Trailer(ModelVar)))
	assert.Contains(t, prog, "model = Model(\"OptimizationProblem\")")
	res := repair.Patch(prog)
	assert.False(t, res.Applied)
	assert.Equal(t, prog, res.Code)
	assert.Equal(t, prog, Assemble(state))
}

func TestRenderShape(t *testing.T) {
	assert.Equal(t, "[]", RenderShape(nil))
	assert.Equal(t, "[N, 19]", RenderShape([]any{"N", 19}))
	assert.Equal(t, "[3]", RenderShape([]any{float64(3)}))
}

func TestCodeFragment(t *testing.T) {
	code, err := codeFragment("=====\n```python\nx = 1\n```\n=====")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", code)

	code, err = codeFragment("no markers\n```python\ny = 2\n```")
	require.NoError(t, err)
	assert.Equal(t, "y = 2", code)

	_, err = codeFragment("nothing")
	require.Error(t, err)
}
