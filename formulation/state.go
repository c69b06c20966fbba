package formulation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lexcodex/optima/extract"
	"github.com/lexcodex/optima/framework"
)

// Parameter is a symbolic input of the problem. Its numeric value lives in
// data.json, never in the state.
type Parameter struct {
	Definition string `json:"definition"`
	Type       string `json:"type"`
	Shape      []any  `json:"shape"`
}

// Variable is a decision variable introduced while formulating the model.
// Code holds its declaration once code generation has run.
type Variable struct {
	Definition string  `json:"definition"`
	Type       string  `json:"type"`
	Shape      []any   `json:"shape"`
	Code       *string `json:"code,omitempty"`
}

// Item is an objective or constraint as it moves from prose to LaTeX to code.
type Item struct {
	Description string  `json:"description"`
	Formulation *string `json:"formulation"`
	Code        *string `json:"code"`
}

// Execution records how the assembled program fared in the repair loop.
type Execution struct {
	State     string `json:"state"`
	Success   bool   `json:"success"`
	Attempts  int    `json:"attempts"`
	Objective string `json:"objective,omitempty"`
}

// State is the formulation document threaded through the synthesis stages.
// Stages treat it as immutable: they Clone, modify the copy and return it.
type State struct {
	Description string                `json:"description"`
	Parameters  OrderedMap[Parameter] `json:"parameters"`
	Objective   *Item                 `json:"objective,omitempty"`
	Constraints []Item                `json:"constraints,omitempty"`
	Variables   OrderedMap[Variable]  `json:"variables"`
	Program     string                `json:"program,omitempty"`
	Outcome     *Execution            `json:"outcome,omitempty"`
}

// Str returns a pointer to s, for optional Item fields.
func Str(s string) *string { return &s }

// Clone deep-copies the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Description: s.Description,
		Parameters:  OrderedMap[Parameter]{},
		Variables:   OrderedMap[Variable]{},
		Program:     s.Program,
	}
	for _, k := range s.Parameters.Keys() {
		p, _ := s.Parameters.Get(k)
		p.Shape = append([]any(nil), p.Shape...)
		out.Parameters.Set(k, p)
	}
	for _, k := range s.Variables.Keys() {
		v, _ := s.Variables.Get(k)
		v.Shape = append([]any(nil), v.Shape...)
		if v.Code != nil {
			v.Code = Str(*v.Code)
		}
		out.Variables.Set(k, v)
	}
	if s.Objective != nil {
		obj := cloneItem(*s.Objective)
		out.Objective = &obj
	}
	if s.Constraints != nil {
		out.Constraints = make([]Item, len(s.Constraints))
		for i, c := range s.Constraints {
			out.Constraints[i] = cloneItem(c)
		}
	}
	if s.Outcome != nil {
		o := *s.Outcome
		out.Outcome = &o
	}
	return out
}

func cloneItem(it Item) Item {
	out := Item{Description: it.Description}
	if it.Formulation != nil {
		out.Formulation = Str(*it.Formulation)
	}
	if it.Code != nil {
		out.Code = Str(*it.Code)
	}
	return out
}

// ParametersJSON renders the parameters the way prompts show them.
func (s *State) ParametersJSON() string {
	return indentJSON(s.Parameters)
}

// VariablesJSON renders the variables the way prompts show them.
func (s *State) VariablesJSON() string {
	return indentJSON(s.Variables)
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// FromInput builds the initial state from problemDir/model_input. Parameter
// values are split off into runDir/data.json, which the generated program
// loads at run time.
func FromInput(problemDir, runDir string) (*State, error) {
	modelDir := filepath.Join(problemDir, "model_input")
	raw, err := os.ReadFile(filepath.Join(modelDir, "params.json"))
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("params.json is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("params.json must be a JSON object")
	}

	state := &State{}
	var values OrderedMap[json.RawMessage]
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		state.Parameters.Set(name, Parameter{
			Definition: strings.TrimSpace(value.Get("definition").String()),
			Type:       strings.TrimSpace(value.Get("type").String()),
			Shape:      ShapeOf(value.Get("shape")),
		})
		v := value.Get("value")
		if v.Exists() {
			values.Set(name, json.RawMessage(v.Raw))
		} else {
			values.Set(name, json.RawMessage("null"))
		}
		return true
	})

	desc, err := os.ReadFile(filepath.Join(modelDir, "desc.txt"))
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	state.Description = string(desc)

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	if err := framework.WriteFileAtomic(filepath.Join(runDir, "data.json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("write data.json: %w", err)
	}
	return state, nil
}

// ShapeOf reads a shape given either as a JSON array or as a "[N, 3]" string.
func ShapeOf(res gjson.Result) []any {
	switch {
	case !res.Exists():
		return []any{}
	case res.IsArray():
		out := []any{}
		for _, dim := range res.Array() {
			if dim.Type == gjson.Number {
				out = append(out, int(dim.Int()))
			} else {
				out = append(out, dim.String())
			}
		}
		return out
	default:
		return extract.ShapeList(res.String())
	}
}
