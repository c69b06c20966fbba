package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lexcodex/optima/extract"
	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/llm"
	"github.com/lexcodex/optima/repair"
)

// OptiMindSystemPrompt is sent with every OptiMind request.
const OptiMindSystemPrompt = "You are an expert in optimization and mixed integer programming. " +
	"You are given an optimization problem and you need to solve it using gurobipy.\n" +
	"Reason step by step before generating the gurobipy code.\n" +
	"When you respond, first think carefully.\n" +
	"After thinking, output the math modeling of the problem.\n" +
	"Finally output a ```python ...``` code block that solves the problem.\n" +
	"The code must include:\n" +
	"import gurobipy as gp\n" +
	"from gurobipy import GRB\n"

// ResponseFile keeps the raw OptiMind reply for the judge.
const ResponseFile = "optimind_response.txt"

// ChatGateway serves system-prompted chat requests.
type ChatGateway interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// OptiMindParams are the sampling settings for the OptiMind server.
type OptiMindParams struct {
	Model            string
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	MaxTokens        int
}

// DefaultOptiMindParams keeps temperature and repetition low; quantized
// models degenerate at higher temperatures.
func DefaultOptiMindParams() OptiMindParams {
	return OptiMindParams{
		Model:            "microsoft/OptiMind-SFT",
		Temperature:      0.4,
		TopP:             1.0,
		FrequencyPenalty: 0.3,
		MaxTokens:        35000,
	}
}

// OptiMind asks a fine-tuned model for a complete program in one shot.
type OptiMind struct {
	Deps
	Chat    ChatGateway
	Fixer   llm.Gateway
	Params  OptiMindParams
	Variant repair.Variant
}

// NewOptiMind wires the single-pass solver.
func NewOptiMind(deps Deps, chat ChatGateway, fixer llm.Gateway, params OptiMindParams) *OptiMind {
	return &OptiMind{Deps: deps, Chat: chat, Fixer: fixer, Params: params, Variant: repair.OptiMindVariant()}
}

func (o *OptiMind) Name() string { return "optimind" }

func (o *OptiMind) Run(ctx context.Context, problemDir string) Result {
	res := Result{Solver: o.Name()}
	outDir := filepath.Join(problemDir, OptiMindDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Err = err
		return res
	}
	logger := o.logger().With("solver", o.Name())

	problem, description, err := ReadProblem(problemDir)
	if err != nil {
		res.Err = err
		return res
	}
	o.Progress.Info("Problem (first 200 chars): %s", clip(problem, 200))

	resp, err := o.Chat.Chat(ctx, llm.ChatRequest{
		Model:            o.Params.Model,
		System:           OptiMindSystemPrompt,
		User:             problem,
		Temperature:      o.Params.Temperature,
		TopP:             o.Params.TopP,
		FrequencyPenalty: o.Params.FrequencyPenalty,
		MaxTokens:        o.Params.MaxTokens,
	})
	if err != nil {
		logger.Error("optimind request failed", "error", err)
		o.Progress.Fail("[optimind] Request failed: %v", err)
		res.Err = fmt.Errorf("optimind request: %w", err)
		return res
	}
	if err := os.WriteFile(filepath.Join(outDir, ResponseFile), []byte(resp), 0o644); err != nil {
		res.Err = err
		return res
	}
	o.Progress.Info("Saved response -> %s", filepath.Join(outDir, ResponseFile))

	code, ok := extract.CodeBlock(resp)
	if !ok {
		o.Progress.Fail("[optimind] No code blocks found in response.")
		msg := "Execution failed: no python code block found in the OptiMind response.\n"
		if err := os.WriteFile(filepath.Join(outDir, repair.OutputFile), []byte(msg), 0o644); err != nil {
			res.Err = err
		}
		res.Outcome = repair.Outcome{State: repair.StateNotRun, Log: msg}
		return res
	}

	loop := o.Loop
	if loop == nil {
		loop = &repair.Loop{Gateway: o.Fixer, Logger: logger, Telemetry: o.Telemetry, Progress: o.Progress}
	}
	outcome, err := loop.Run(ctx, o.Variant, outDir, description, code)
	res.Outcome = outcome
	if err != nil {
		res.Err = err
		return res
	}
	res.Success = outcome.Success
	res.Objective = outcome.Objective
	if outcome.ObjectiveRaw != "" {
		o.Progress.Info("[optimind] Objective value: %s", outcome.ObjectiveRaw)
	}
	return res
}

// ReadProblem builds the single user message OptiMind expects: the trimmed
// description followed by the parameter values. It also returns the bare
// description for the fixer prompt.
func ReadProblem(problemDir string) (problem, description string, err error) {
	modelDir := filepath.Join(problemDir, "model_input")
	desc, err := os.ReadFile(filepath.Join(modelDir, "desc.txt"))
	if err != nil {
		return "", "", fmt.Errorf("missing model_input/desc.txt in %s: %w", problemDir, err)
	}
	raw, err := os.ReadFile(filepath.Join(modelDir, "params.json"))
	if err != nil {
		return "", "", fmt.Errorf("missing model_input/params.json in %s: %w", problemDir, err)
	}
	if !gjson.ValidBytes(raw) {
		return "", "", fmt.Errorf("model_input/params.json is not valid JSON")
	}
	var values formulation.OrderedMap[json.RawMessage]
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		values.Set(key.String(), json.RawMessage(orNull(value.Get("value").Raw)))
		return true
	})
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return "", "", err
	}
	description = strings.TrimSpace(string(desc))
	return description + "\n\nUse the following data:\n" + string(data), description, nil
}

func orNull(raw string) string {
	if raw == "" {
		return "null"
	}
	return raw
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
