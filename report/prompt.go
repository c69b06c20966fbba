package report

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"

	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/judge"
	"github.com/lexcodex/optima/verdict"
)

const fence = "```"

// Inputs is everything the consultant prompt draws on.
type Inputs struct {
	Description string
	Params      string
	Baseline    string
	Verdict     verdict.Verdict
	Code        string
	Log         string
	State       *formulation.State
	Stats       SolverStats
}

// HasBaseline reports whether the client supplied a current strategy.
func (in Inputs) HasBaseline() bool { return in.Baseline != "" }

func winnerDetails(in Inputs) string {
	v := in.Verdict
	status := v.Solvers.OptiMUS.Status
	if v.Winner == string(judge.OptiMind) {
		status = v.Solvers.OptiMind.Status
	}
	objective := "None"
	if v.ObjectiveValue != nil {
		objective = judge.FormatObjective(*v.ObjectiveValue)
	}
	parts := []string{
		"Winner: " + strings.ToUpper(v.Winner),
		"Objective value: " + objective,
		"Direction: " + v.Direction,
		"Solver status: " + status,
	}

	if st := in.State; st != nil {
		desc, form := "N/A", "N/A"
		if st.Objective != nil {
			desc = naIfEmpty(st.Objective.Description)
			if st.Objective.Formulation != nil {
				form = naIfEmpty(*st.Objective.Formulation)
			}
		}
		parts = append(parts, "\nObjective: "+desc, "Formulation: "+form)
		if len(st.Constraints) > 0 {
			parts = append(parts, fmt.Sprintf("\nConstraints (%d):", len(st.Constraints)))
			for i, c := range st.Constraints {
				f := "N/A"
				if c.Formulation != nil {
					f = naIfEmpty(*c.Formulation)
				}
				parts = append(parts, fmt.Sprintf("  %d. %s", i+1, naIfEmpty(c.Description)), "     Formulation: "+f)
			}
		}
		if st.Variables.Len() > 0 {
			parts = append(parts, fmt.Sprintf("\nDecision Variables (%d):", st.Variables.Len()))
			for _, name := range st.Variables.Keys() {
				dv, _ := st.Variables.Get(name)
				parts = append(parts, fmt.Sprintf("  %s: %s (%s)", name, naIfEmpty(dv.Definition), naIfEmpty(dv.Type)))
			}
		}
	}

	if s := in.Stats; !s.Empty() {
		parts = append(parts, "\nSolver Statistics:")
		if s.MIPGapPct != nil {
			parts = append(parts, fmt.Sprintf("  MIP Gap: %s%%", judge.FormatObjective(*s.MIPGapPct)))
		}
		if s.SolveTimeS != nil {
			parts = append(parts, fmt.Sprintf("  Solve time: %ss", judge.FormatObjective(*s.SolveTimeS)))
		}
		if s.NodesExplored != nil {
			parts = append(parts, fmt.Sprintf("  Nodes explored: %d", *s.NodesExplored))
		}
		if s.BestBound != nil {
			parts = append(parts, "  Best bound: "+judge.FormatObjective(*s.BestBound))
		}
	}
	if in.Code != "" {
		parts = append(parts, fmt.Sprintf("\nGenerated Code:\n%spython\n%s\n%s", fence, in.Code, fence))
	}
	if in.Log != "" {
		parts = append(parts, "\nFull Execution Output:\n"+in.Log)
	}
	return strings.Join(parts, "\n")
}

func naIfEmpty(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var baselineSection = heredoc.Doc(`

	## Client's Current Baseline Strategy

	{{baseline}}

`)

var baselineWithComparison = heredoc.Doc(`

	## Baseline Comparison

	Compare the optimized solution against the client's current baseline strategy.
	Present a comparison table:

	| Metric | Current (Baseline) | Optimized | Change |
	|--------|-------------------|-----------|--------|
	| ... | ... | ... | ... |

	Include:
	- Summarize the baseline approach in 1-2 sentences
	- Quantify the improvement (objective value, %, absolute delta)
	- Identify what specifically changes from baseline to optimized
	- Note any baseline practices that are already optimal and should be maintained
	- Assess practical feasibility of transitioning from baseline to optimized
	- If the baseline does not provide enough numerical detail for exact comparison,
	  make reasonable inferences and note your assumptions
`)

var baselineMissing = heredoc.Doc(`

	## Baseline Comparison

	*Note: No baseline strategy was provided. Skip this section and note that
	a baseline comparison was not possible.*
`)

var gapInstructions = heredoc.Doc(`

	The solver reported a MIP gap of {{gap}}%. Interpret this for
	both audiences: explain what it means for solution quality in the executive
	summary (e.g. "the solution is proven optimal" or "within X% of the best
	possible"), and give the precise gap and bound in the technical appendix.
`)

var consultantTemplate = heredoc.Doc(`
	You are a senior optimization consultant at a top-tier management consulting
	firm. You have just completed an optimization engagement for a client and must
	now deliver a comprehensive, polished report.

	Your tone: authoritative, precise, client-ready. In the executive summary you
	speak plainly to C-suite executives (no jargon, no math, concrete numbers
	and actions). In the technical appendix you speak to engineers and data
	scientists with full mathematical rigor, solver details and code.

	# Inputs

	## Problem Description

	{{description}}

	## Parameters

	{{params}}{{baseline_section}}
	## Winning Solution

	{{winner}}

	## Judge's Assessment

	{{reasoning}}{{gap_instructions}}

	# Report Structure

	Produce a Markdown report with EXACTLY these sections. Use ## for top-level
	headings and ### for subsections.

	## Problem Statement

	Reproduce the client's problem description verbatim as a blockquote
	(use > prefix). Then add 1-2 sentences summarizing the core optimization
	question in your own words.

	## Executive Summary

	Write for executives. No math, no code. Be specific and concrete:
	- What was the business problem and why it matters
	- What the optimal solution recommends; cite SPECIFIC numbers, quantities,
	  allocations, and the CONDITIONS/CONSTRAINTS that shape them
	- The bottom-line impact (objective value in business terms: "$X profit",
	  "Y% cost reduction", etc.)
	- Key trade-offs, caveats, or implementation considerations
	- If the solution achieves the global optimum, state this clearly
	{{baseline_instructions}}
	## Key Recommendations

	Numbered, actionable steps the client should take. Be concrete:
	"Increase production of Product A to 40 units/week" not "Adjust production."

	---

	## Technical Appendix

	The entire Technical Appendix must be written in a rigorous, publication-quality
	mathematical style. Use LaTeX math heavily throughout: every formula, every
	variable reference, every constraint must be typeset as math. This section is
	for engineers and data scientists who expect the level of detail found in an
	optimization textbook or journal paper.

	CRITICAL FORMATTING RULE: Use $...$ for ALL inline math and $$...$$ on its
	own line for ALL display math. NEVER use \(...\) or \[...\] delimiters.

	### Problem Formulation

	Present a complete mathematical program:

	1. **Sets and indices**: define any index sets (e.g. $i \in \{1, \ldots, n\}$)
	2. **Parameters**: list all given data with symbols, definitions, and values
	   in a Markdown table: | Symbol | Definition | Value |
	3. **Decision variables**: define each variable with symbol, domain, and bounds
	4. **Objective function**: state maximize/minimize and write the full objective
	   as a display-math equation using $$...$$
	5. **Constraints**: number each constraint, write it as display math, and add
	   a brief note on what it encodes

	### Optimal Solution

	Present a table of decision variable values at optimum:
	| Variable | Value | Description |

	Then discuss:
	- Which constraints are **active (binding)** at the optimum? Why does this
	  matter?
	- Which constraints have **slack**? What does the slack value mean?
	- Any sensitivity or robustness observations from the solver output

	### Solver Statistics

	Present as a clean table:
	| Metric | Value |
	Including: solver status, objective value, MIP gap (if applicable), best bound,
	solve time, iterations, nodes explored (where available).

	### Generated Code

	Include the full solver code in a {{fence}}python code block.

	---

	Output ONLY the Markdown report. Do not wrap it in code fences or add
	preamble/postamble text.`)

// Prompt renders the consultant prompt. Placeholders are substituted in a
// single pass so text from the inputs is never re-expanded.
func Prompt(in Inputs) string {
	description := in.Description
	if description == "" {
		description = "(no description)"
	}
	reasoning := in.Verdict.Reasoning
	if reasoning == "" {
		reasoning = "N/A"
	}
	section, instructions := "\n", baselineMissing
	if in.HasBaseline() {
		section = "\n" + strings.Replace(baselineSection, "{{baseline}}", in.Baseline, 1)
		instructions = baselineWithComparison
	}
	gap := ""
	if in.Stats.MIPGapPct != nil {
		gap = strings.Replace(gapInstructions, "{{gap}}", judge.FormatObjective(*in.Stats.MIPGapPct), 1)
	}
	return strings.NewReplacer(
		"{{description}}", description,
		"{{params}}", in.Params,
		"{{baseline_section}}", section,
		"{{winner}}", winnerDetails(in),
		"{{reasoning}}", reasoning,
		"{{gap_instructions}}", gap,
		"{{baseline_instructions}}", instructions,
		"{{fence}}", fence,
	).Replace(consultantTemplate)
}
