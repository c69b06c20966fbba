package solver

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

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/llm"
	"github.com/lexcodex/optima/repair"
)

type fakeChat struct {
	reply string
	err   error
	got   llm.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	f.got = req
	return f.reply, f.err
}

type promptGateway struct {
	mu    sync.Mutex
	reply func(prompt string) (string, error)
}

func (g *promptGateway) Complete(ctx context.Context, prompt, model string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reply(prompt)
}

// pythonStub succeeds for any program and records a fixed objective.
type pythonStub struct{}

func (pythonStub) Run(ctx context.Context, req framework.CommandRequest) (framework.CommandResult, error) {
	data, err := os.ReadFile(filepath.Join(req.Workdir, req.Args[1]))
	if err != nil {
		return framework.CommandResult{}, errors.Join(framework.ErrLaunch, err)
	}
	if strings.Contains(string(data), "BROKEN") {
		return framework.CommandResult{Stderr: "Traceback (most recent call last):\n", ExitCode: 1}, nil
	}
	if err := os.WriteFile(filepath.Join(req.Workdir, repair.TrailerMarker), []byte("280.0"), 0o644); err != nil {
		return framework.CommandResult{}, err
	}
	return framework.CommandResult{Stdout: "Optimal solution found\nOptimal objective 2.800000000e+02\n"}, nil
}

func problemDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model_input")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	params := `{"B": {"definition": "budget", "type": "float", "shape": [], "value": 10},
		"A": {"definition": "costs", "type": "float", "shape": [2], "value": [1, 2]}}`
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "params.json"), []byte(params), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "desc.txt"), []byte("  Spend the budget wisely.\n"), 0o644))
	return dir
}

func deps(gw llm.Gateway) Deps {
	return Deps{
		Loop: &repair.Loop{
			Gateway:  gw,
			Executor: repair.NewExecutor(pythonStub{}, "python"),
			Progress: framework.DiscardProgress(),
		},
		Progress: framework.DiscardProgress(),
	}
}

func TestReadProblem(t *testing.T) {
	problem, desc, err := ReadProblem(problemDir(t))
	require.NoError(t, err)
	assert.Equal(t, "Spend the budget wisely.", desc)
	assert.Equal(t, "Spend the budget wisely.\n\nUse the following data:\n{\n  \"B\": 10,\n  \"A\": [\n    1,\n    2\n  ]\n}", problem)

	_, _, err = ReadProblem(t.TempDir())
	require.Error(t, err)
}

func TestOptiMindRunSuccess(t *testing.T) {
	dir := problemDir(t)
	chat := &fakeChat{reply: "Reasoning...\n```python\nimport gurobipy as gp\nfrom gurobipy import GRB\nm = gp.Model('p')\nm.optimize()\n```"}
	solver := NewOptiMind(deps(nil), chat, nil, DefaultOptiMindParams())

	res := solver.Run(context.Background(), dir)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Objective)
	assert.InDelta(t, 280.0, *res.Objective, 1e-9)

	assert.Equal(t, OptiMindSystemPrompt, chat.got.System)
	assert.InDelta(t, 0.4, chat.got.Temperature, 1e-9)
	assert.InDelta(t, 0.3, chat.got.FrequencyPenalty, 1e-9)
	assert.Equal(t, 35000, chat.got.MaxTokens)

	out := filepath.Join(dir, OptiMindDir)
	assert.FileExists(t, filepath.Join(out, ResponseFile))
	code, err := os.ReadFile(filepath.Join(out, "optimind_code.py"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "if m.status == GRB.OPTIMAL:")
}

func TestOptiMindWithoutCodeBlock(t *testing.T) {
	dir := problemDir(t)
	solver := NewOptiMind(deps(nil), &fakeChat{reply: "I am not sure."}, nil, DefaultOptiMindParams())
	res := solver.Run(context.Background(), dir)
	require.NoError(t, res.Err)
	assert.False(t, res.Success)
	assert.Equal(t, repair.StateNotRun, res.Outcome.State)

	log, err := os.ReadFile(filepath.Join(dir, OptiMindDir, repair.OutputFile))
	require.NoError(t, err)
	assert.Contains(t, string(log), "no python code block")
	assert.NoFileExists(t, filepath.Join(dir, OptiMindDir, "optimind_code.py"))
}

func TestOptiMindRequestFailure(t *testing.T) {
	res := NewOptiMind(deps(nil), &fakeChat{err: errors.New("connection refused")}, nil, DefaultOptiMindParams()).
		Run(context.Background(), problemDir(t))
	require.Error(t, res.Err)
	assert.False(t, res.Success)
}

func TestOptiMUSRunEndToEnd(t *testing.T) {
	dir := problemDir(t)
	gw := &promptGateway{reply: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "identify and extract the optimization objective"):
			return "=====\nOBJECTIVE: Minimize spend\n=====", nil
		case strings.Contains(prompt, "extract every constraint"):
			return `["Spend at most B"]`, nil
		case strings.Contains(prompt, "model the following constraint"):
			return `{"FORMULATION": "$\\sum_i A_i x_i \\leq B$", "NEW VARIABLES": {"x": {"shape": "[2]", "type": "continuous", "definition": "amount"}}}`, nil
		case strings.Contains(prompt, "model the following objective"):
			return "=====\n$\\min \\sum_i A_i x_i$\n=====", nil
		case strings.Contains(prompt, "declares this decision variable"):
			return "=====\nx = model.addVars(2, name=\"x\")\n=====", nil
		case strings.Contains(prompt, "adds the following constraint"):
			return "=====\nmodel.addConstr(quicksum(A[i] * x[i] for i in range(2)) <= B)\n=====", nil
		case strings.Contains(prompt, "sets the following objective"):
			return "=====\nmodel.setObjective(quicksum(A[i] * x[i] for i in range(2)), GRB.MINIMIZE)\n=====", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	solver := NewOptiMUS(deps(gw), gw, "claude-test")
	res := solver.Run(context.Background(), dir)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, repair.StateSuccess, res.Outcome.State)

	out := filepath.Join(dir, OptiMUSDir)
	for _, f := range []string{"code.py", "data.json", "log.txt", "state_6_code.json", repair.OutputFile, repair.TrailerMarker} {
		assert.FileExists(t, filepath.Join(out, f))
	}
	snap, err := os.ReadFile(filepath.Join(out, "state_6_code.json"))
	require.NoError(t, err)
	assert.Contains(t, string(snap), `"state": "SUCCESS"`)
}

func TestOptiMUSFormulationFailureIsContained(t *testing.T) {
	gw := &promptGateway{reply: func(string) (string, error) {
		return "", &llm.ProviderError{StatusCode: 401, Err: errors.New("bad key")}
	}}
	res := NewOptiMUS(deps(gw), gw, "claude-test").Run(context.Background(), problemDir(t))
	require.Error(t, res.Err)
	assert.False(t, res.Success)
	var pe *llm.ProviderError
	assert.ErrorAs(t, res.Err, &pe)
}
