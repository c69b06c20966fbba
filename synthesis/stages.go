package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lexcodex/optima/extract"
	"github.com/lexcodex/optima/formulation"
)

// Stage names used in logs, telemetry and wrapped errors.
const (
	StageObjective       = "objective extraction"
	StageConstraints     = "constraint extraction"
	StageConstraintModel = "constraint formulation"
	StageObjectiveModel  = "objective formulation"
	StageCode            = "code generation"
)

// ExtractObjective fills in the objective description.
func (p *Pipeline) ExtractObjective(ctx context.Context, in *formulation.State) (*formulation.State, error) {
	prompt := objectivePrompt(in.Description, in.ParametersJSON())
	desc, err := ask(ctx, p, StageObjective, prompt, extract.Objective)
	if err != nil {
		return nil, err
	}
	out := in.Clone()
	out.Objective = &formulation.Item{Description: desc}
	p.StageLog.Log("OBJECTIVE: " + desc)
	return out, nil
}

// ExtractConstraints fills in the constraint descriptions.
func (p *Pipeline) ExtractConstraints(ctx context.Context, in *formulation.State) (*formulation.State, error) {
	prompt := constraintsPrompt(in.Description, in.ParametersJSON())
	list, err := ask(ctx, p, StageConstraints, prompt, func(resp string) ([]string, error) {
		res, err := extract.ListFromEnd(resp)
		if err != nil {
			return nil, err
		}
		items := extract.Strings(res)
		if len(items) == 0 {
			return nil, &extract.ExtractionError{Raw: resp, Err: fmt.Errorf("%w: empty constraint list", extract.ErrMissingField)}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	out := in.Clone()
	out.Constraints = make([]formulation.Item, 0, len(list))
	for i, c := range list {
		out.Constraints = append(out.Constraints, formulation.Item{Description: c})
		p.StageLog.Log(fmt.Sprintf("CONSTRAINT %d: %s", i+1, c))
	}
	return out, nil
}

type constraintModel struct {
	formulation string
	variables   []namedVariable
	auxiliary   []string
}

type namedVariable struct {
	name string
	formulation.Variable
}

// FormulateConstraints writes LaTeX for every constraint and collects the new
// variables they introduce. A variable keeps its first definition.
func (p *Pipeline) FormulateConstraints(ctx context.Context, in *formulation.State) (*formulation.State, error) {
	out := in.Clone()
	var formulated []formulation.Item
	for i, c := range in.Constraints {
		prompt := constraintFormulationPrompt(out.Description, out.ParametersJSON(), out.VariablesJSON(), c.Description)
		model, err := ask(ctx, p, StageConstraintModel, prompt, parseConstraintModel)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i+1, err)
		}
		formulated = append(formulated, formulation.Item{
			Description: c.Description,
			Formulation: formulation.Str(model.formulation),
		})
		for _, v := range model.variables {
			if out.Variables.SetIfAbsent(v.name, v.Variable) {
				p.StageLog.Log(fmt.Sprintf("NEW VARIABLE %s: %s (%s)", v.name, v.Definition, v.Type))
			}
		}
		for _, aux := range model.auxiliary {
			formulated = append(formulated, formulation.Item{
				Description: "Auxiliary constraint for: " + c.Description,
				Formulation: formulation.Str(aux),
			})
		}
		p.StageLog.Log(fmt.Sprintf("FORMULATION %d: %s", i+1, model.formulation))
	}
	out.Constraints = formulated
	return out, nil
}

func parseConstraintModel(resp string) (constraintModel, error) {
	res, err := extract.JSONFromEnd(resp)
	if err != nil {
		return constraintModel{}, err
	}
	if err := extract.Require(res, "FORMULATION", "NEW VARIABLES"); err != nil {
		return constraintModel{}, err
	}
	model := constraintModel{formulation: strings.TrimSpace(extract.Field(res, "FORMULATION").String())}
	extract.Field(res, "NEW VARIABLES").ForEach(func(key, value gjson.Result) bool {
		name := strings.TrimSpace(key.String())
		if name == "" {
			return true
		}
		model.variables = append(model.variables, namedVariable{
			name: name,
			Variable: formulation.Variable{
				Definition: strings.TrimSpace(value.Get("definition").String()),
				Type:       strings.TrimSpace(value.Get("type").String()),
				Shape:      formulation.ShapeOf(value.Get("shape")),
			},
		})
		return true
	})
	model.auxiliary = extract.Strings(extract.Field(res, "AUXILIARY CONSTRAINTS"))
	return model, nil
}

// FormulateObjective writes the LaTeX objective against the full variable set.
func (p *Pipeline) FormulateObjective(ctx context.Context, in *formulation.State) (*formulation.State, error) {
	if in.Objective == nil {
		return nil, fmt.Errorf("stage %s: objective has not been extracted", StageObjectiveModel)
	}
	prompt := objectiveFormulationPrompt(in.Description, in.ParametersJSON(), in.VariablesJSON(), in.Objective.Description)
	latex, err := ask(ctx, p, StageObjectiveModel, prompt, extract.EqualSignClosed)
	if err != nil {
		return nil, err
	}
	out := in.Clone()
	out.Objective.Formulation = formulation.Str(latex)
	p.StageLog.Log("OBJECTIVE FORMULATION: " + latex)
	return out, nil
}

// GenerateCode produces one fragment per variable, constraint and objective.
// Variables go first so every later fragment can reference them.
func (p *Pipeline) GenerateCode(ctx context.Context, in *formulation.State) (*formulation.State, error) {
	out := in.Clone()
	params := out.ParametersJSON()
	for _, name := range out.Variables.Keys() {
		v, _ := out.Variables.Get(name)
		spec := fmt.Sprintf("%s (type: %s, shape: %s)", v.Definition, v.Type, RenderShape(v.Shape))
		code, err := ask(ctx, p, StageCode, variableCodePrompt(params, name, spec), codeFragment)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		v.Code = formulation.Str(code)
		out.Variables.Set(name, v)
	}
	vars := out.VariablesJSON()
	for i := range out.Constraints {
		c := &out.Constraints[i]
		code, err := ask(ctx, p, StageCode, constraintCodePrompt(params, vars, c.Description, deref(c.Formulation)), codeFragment)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i+1, err)
		}
		c.Code = formulation.Str(code)
	}
	if out.Objective != nil {
		code, err := ask(ctx, p, StageCode, objectiveCodePrompt(params, vars, out.Objective.Description, deref(out.Objective.Formulation)), codeFragment)
		if err != nil {
			return nil, fmt.Errorf("objective: %w", err)
		}
		out.Objective.Code = formulation.Str(code)
	}
	return out, nil
}

// codeFragment reads a ===== block and drops any code fences inside it.
func codeFragment(resp string) (string, error) {
	body, err := extract.EqualSignClosed(resp)
	if err != nil {
		if code, ok := extract.CodeBlock(resp); ok {
			return code, nil
		}
		return "", err
	}
	if strings.Contains(body, "```") {
		if code, ok := extract.CodeBlock(body); ok {
			return code, nil
		}
		body = extract.StripCodeFences(body)
	}
	return body, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
