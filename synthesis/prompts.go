package synthesis

import (
	"github.com/MakeNowJust/heredoc"
)

func objectivePrompt(description, params string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling. Here is the natural language description of an optimization problem:

		-----
		%s
		-----

		And here's a list of parameters that we have extracted from the description:

		%s

		Your task is to identify and extract the optimization objective from the description. The objective is the goal that the optimization model is trying to achieve (e.g. maximize profit, minimize cost). Please generate the output in the following format:

		=====
		OBJECTIVE: objective description
		=====

		for example:

		=====
		OBJECTIVE: "The goal is to maximize the total profit from producing television sets"
		=====

		- Do not generate anything after the objective.
		Take a deep breath and think step by step.
	`, description, params)
}

func constraintsPrompt(description, params string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling. Here is the natural language description of an optimization problem:

		-----
		%s
		-----

		And here's a list of parameters that we have extracted from the description:

		%s

		Your task is to identify and extract every constraint from the description. Constraints are the conditions a feasible solution must satisfy (capacity limits, demand requirements, balance equations, bounds and so on). Do not include the objective, and include non-negativity or integrality only when the description states them.

		Please generate the output as a JSON list of strings, one constraint description per element, at the very end of your response:

		[
		    "constraint description 1",
		    "constraint description 2"
		]

		- Refer to parameters by their symbols.
		- Do not generate anything after the list.
		Take a deep breath and think step by step.
	`, description, params)
}

func constraintFormulationPrompt(description, params, vars, constraint string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling. Here is the natural language description of an optimization problem:

		-----
		%s
		-----

		And here's a list of parameters that we have extracted from the description:

		%s

		And here's a list of all variables that we have defined so far to model the problem as an (MI)LP:

		%s

		Your task is to model the following constraint mathematically in LaTeX for the MILP formulation:

		%s

		If the constraint needs decision variables that do not exist yet, define them. If it needs extra linking constraints (for example big-M or indicator linearizations), list them as auxiliary constraints. Generate the output as a JSON object at the very end of your response, in this format:

		{
		    "FORMULATION": "constraint formulation in LaTeX, between $...$",
		    "NEW VARIABLES": {
		        "SymbolName": {
		            "shape": "[NumberOfItems]",
		            "type": "continuous",
		            "definition": "what the variable represents"
		        }
		    },
		    "AUXILIARY CONSTRAINTS": [
		        "auxiliary constraint in LaTeX, between $...$"
		    ]
		}

		- Variable types are continuous, integer or binary.
		- Shapes use parameter symbols or integers; use [] for scalars.
		- You can only use existing parameters, existing variables and the new variables you define.
		- Use an empty object and an empty list when nothing new is needed.
		Take a deep breath and think step by step.
	`, description, params, vars, constraint)
}

func objectiveFormulationPrompt(description, params, vars, objective string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling. Here is the natural language description of an optimization problem:

		-----
		%s
		-----

		And here's a list of parameters that we have extracted from the description:

		%s

		And here's a list of all variables that we have defined so far to model the problem as an (MI)LP:

		%s

		Your task is to model the following objective mathematically in LaTeX for the MILP formulation:

		%s

		The objective is the goal that the optimization model is trying to achieve (e.g. maximize profit, minimize cost). Please generate the output in the following format:

		=====
		objective formulation in LaTeX, between $...$,
		=====

		Here's an example output:

		=====
		$\max \sum_{i=1}^{N} price_i x_i$
		=====

		- You can only use existing parameters and variables in the formulation.
		- Do not generate anything after the objective!

		First reason about how the objective should be formulated, and then generate the output.
		Take a deep breath and think step by step.
	`, description, params, vars, objective)
}

const codeContext = `
	The program already contains the following, so do not repeat it:

	    from gurobipy import Model, GRB, quicksum
	    model = Model("OptimizationProblem")

	Every parameter is bound to a Python variable of the same name loaded from a JSON data file (scalars are numbers, arrays are nested lists). Index arrays from 0.
`

func variableCodePrompt(params, name, variable string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling and gurobipy.
		%s
		Parameters:

		%s

		Write the gurobipy code that declares this decision variable on model:

		%s: %s

		Bind it to a Python variable with the same name. Use model.addVar for scalars and model.addVars for indexed variables, with the matching vtype (GRB.CONTINUOUS, GRB.INTEGER or GRB.BINARY).

		Generate only the code, between ===== markers:

		=====
		code
		=====
	`, heredoc.Doc(codeContext), params, name, variable)
}

func constraintCodePrompt(params, vars, description, formulation string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling and gurobipy.
		%s
		Parameters:

		%s

		Variables (already declared on model with these names):

		%s

		Write the gurobipy code that adds the following constraint to model.

		Description: %s
		Formulation: %s

		Use model.addConstr or model.addConstrs. Do not declare new variables.

		Generate only the code, between ===== markers:

		=====
		code
		=====
	`, heredoc.Doc(codeContext), params, vars, description, formulation)
}

func objectiveCodePrompt(params, vars, description, formulation string) string {
	return heredoc.Docf(`
		You are an expert in optimization modeling and gurobipy.
		%s
		Parameters:

		%s

		Variables (already declared on model with these names):

		%s

		Write the gurobipy code that sets the following objective on model.

		Description: %s
		Formulation: %s

		Use model.setObjective with GRB.MAXIMIZE or GRB.MINIMIZE. Do not call model.optimize().

		Generate only the code, between ===== markers:

		=====
		code
		=====
	`, heredoc.Doc(codeContext), params, vars, description, formulation)
}
