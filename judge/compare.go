package judge

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/MakeNowJust/heredoc"

	"github.com/lexcodex/optima/llm"
)

// DefaultModel is the comparison model.
const DefaultModel = "gpt-4o"

// Comparison is the judge model's structured answer.
type Comparison struct {
	Winner             string `json:"winner"`
	Direction          string `json:"direction"`
	Reasoning          string `json:"reasoning"`
	OptiMUSAssessment  string `json:"optimus_assessment"`
	OptiMindAssessment string `json:"optimind_assessment"`
}

// ComparisonPrompt renders the rubric prompt for both solver summaries.
func ComparisonPrompt(problem Problem, optimus, optimind *SolverOutput) string {
	desc := "(no description)"
	if problem.Description != nil {
		desc = *problem.Description
	}
	return heredoc.Docf(`
		You are an expert in mathematical optimization and operations research. Your role is to act as a rigorous judge comparing two automated solvers' outputs for the same optimization problem.

		## Original Problem

		%s

		## Solver Outputs

		%s

		---

		%s

		## Evaluation Criteria (apply in order; later criteria break ties)

		1. **Execution success**: Did the code run and produce a result? A solver that crashes or returns INFEASIBLE/UNBOUNDED (when the problem is feasible) cannot win unless the other also failed.

		2. **Formulation correctness**: Is the objective correct (right direction, right expression)? Are all constraints from the problem captured with correct signs, bounds, and variable types?

		3. **Implementation fidelity**: Does the code correctly implement the stated formulation? Check indices, coefficients, constraint sense (≤ vs ≥ vs =), and that the solver is invoked properly.

		4. **Objective value**: If both are correct and executed, which achieves a strictly better objective (higher for maximize, lower for minimize)?

		If only one solver produced output, evaluate it on criteria 2-4 and it wins by default on execution.

		Respond with a JSON object **and nothing else**:
		{
		    "winner": "optimus" or "optimind",
		    "direction": "maximize" or "minimize",
		    "reasoning": "2-4 sentences: why this solver won, citing specific formulation or implementation strengths/weaknesses",
		    "optimus_assessment": "1-2 sentence assessment of OptiMUS",
		    "optimind_assessment": "1-2 sentence assessment of OptiMind"
		}`, desc, FormatOptiMUS(optimus), FormatOptiMind(optimind))
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseJudgeJSON pulls the comparison object out of a model reply. It
// tolerates code fences and prose around the object; ok is false when no
// object with a "winner" key can be decoded.
func ParseJudgeJSON(reply string) (Comparison, bool) {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, fence) {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = text[len(fence):]
		}
	}
	if strings.HasSuffix(text, fence) {
		text = text[:strings.LastIndex(text, fence)]
	}
	text = strings.TrimSpace(text)

	if c, ok := decodeComparison(text); ok {
		return c, true
	}
	if m := jsonObject.FindString(text); m != "" {
		return decodeComparison(m)
	}
	return Comparison{}, false
}

func decodeComparison(text string) (Comparison, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Comparison{}, false
	}
	if _, ok := fields["winner"]; !ok {
		return Comparison{}, false
	}
	var c Comparison
	for key, dst := range map[string]*string{
		"winner":              &c.Winner,
		"direction":           &c.Direction,
		"reasoning":           &c.Reasoning,
		"optimus_assessment":  &c.OptiMUSAssessment,
		"optimind_assessment": &c.OptiMindAssessment,
	} {
		if raw, ok := fields[key]; ok {
			*dst = rawString(raw)
		}
	}
	return c, true
}

// rawString accepts a JSON string or falls back to the literal text of any
// other value, so a stray number or null does not sink the whole reply.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// fallbackRawRunes caps how much of an unparseable reply is kept.
const fallbackRawRunes = 500

// FallbackComparison is used when the reply cannot be parsed.
func FallbackComparison(raw string) Comparison {
	if runes := []rune(raw); len(runes) > fallbackRawRunes {
		raw = string(runes[:fallbackRawRunes])
	}
	return Comparison{
		Winner:             string(OptiMUS),
		Direction:          string(DirectionUnknown),
		Reasoning:          "Judge response could not be parsed. Raw: " + raw,
		OptiMUSAssessment:  "N/A",
		OptiMindAssessment: "N/A",
	}
}

// Compare asks the judge model to compare both runs. Gateway errors and
// unparseable replies both produce the fallback comparison; only a done
// context is returned as an error.
func Compare(ctx context.Context, gateway llm.Gateway, model string, problem Problem, optimus, optimind *SolverOutput) (Comparison, error) {
	reply, err := gateway.Complete(ctx, ComparisonPrompt(problem, optimus, optimind), model)
	if err != nil {
		if ctx.Err() != nil {
			return Comparison{}, ctx.Err()
		}
		return FallbackComparison(err.Error()), nil
	}
	if c, ok := ParseJudgeJSON(reply); ok {
		return c, nil
	}
	return FallbackComparison(reply), nil
}
