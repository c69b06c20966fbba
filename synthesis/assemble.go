package synthesis

import (
	"fmt"
	"strings"

	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/repair"
)

// ModelVar is the name the assembled program binds its Model to.
const ModelVar = "model"

const header = `
import os
import numpy as np
import json
from gurobipy import Model, GRB, quicksum


model = Model("OptimizationProblem")

with open("data.json", "r") as f:
    data = json.load(f)

`

// Assemble concatenates the generated fragments into one runnable program.
// It makes no model calls.
func Assemble(state *formulation.State) string {
	var b strings.Builder
	b.WriteString(header)

	b.WriteString("\n### Define the parameters\n\n")
	for _, name := range state.Parameters.Keys() {
		p, _ := state.Parameters.Get(name)
		fmt.Fprintf(&b, "%s = data[%q] # shape: %s, definition: %s\n\n", name, name, RenderShape(p.Shape), oneLine(p.Definition))
	}

	b.WriteString("\n### Define the variables\n\n")
	for _, name := range state.Variables.Keys() {
		v, _ := state.Variables.Get(name)
		if v.Code != nil {
			writeFragment(&b, *v.Code)
		}
	}

	b.WriteString("\n### Define the constraints\n\n")
	for _, c := range state.Constraints {
		if c.Code != nil {
			writeFragment(&b, *c.Code)
		}
	}

	b.WriteString("\n### Define the objective\n\n")
	if state.Objective != nil && state.Objective.Code != nil {
		writeFragment(&b, *state.Objective.Code)
	}

	b.WriteString("\n### Optimize the model\n\n")
	b.WriteString(ModelVar + ".optimize()\n")
	b.WriteString(repair.Trailer(ModelVar))
	return b.String()
}

func writeFragment(b *strings.Builder, code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	b.WriteString(code)
	b.WriteString("\n\n")
}

// RenderShape writes a shape the way it appears in prompts and comments.
func RenderShape(shape []any) string {
	parts := make([]string, 0, len(shape))
	for _, dim := range shape {
		switch d := dim.(type) {
		case float64:
			parts = append(parts, fmt.Sprintf("%d", int(d)))
		default:
			parts = append(parts, fmt.Sprint(d))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
