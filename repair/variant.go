package repair

import (
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultInterpreter = "python"
	DefaultFixerModel  = "claude-haiku-4-5-20251001"
)

// Variant parameterizes the repair loop for one solver. Both solvers share
// the loop; only budgets, file names and prompts differ.
type Variant struct {
	Name          string
	Budget        int
	Timeout       time.Duration
	Interpreter   string
	FixerModel    string
	CanonicalFile string
	AttemptFile   func(i int) string
	ErrorFile     func(i int) string
	FixPrompt     func(description, code, output string) string

	// SkipConsumesSlot controls whether a fixer reply without a code block
	// uses up one of the Budget attempts.
	SkipConsumesSlot bool
}

// OptiMUSVariant is the configuration used for assembled multi-stage programs.
func OptiMUSVariant() Variant {
	return Variant{
		Name:             "optimus",
		Budget:           3,
		Timeout:          DefaultTimeout,
		Interpreter:      DefaultInterpreter,
		FixerModel:       DefaultFixerModel,
		CanonicalFile:    "code.py",
		AttemptFile:      func(i int) string { return fmt.Sprintf("code_%d.py", i) },
		ErrorFile:        errorFile,
		FixPrompt:        FixPrompt,
		SkipConsumesSlot: true,
	}
}

// OptiMindVariant is the configuration used for single-pass programs.
func OptiMindVariant() Variant {
	return Variant{
		Name:             "optimind",
		Budget:           5,
		Timeout:          DefaultTimeout,
		Interpreter:      DefaultInterpreter,
		FixerModel:       DefaultFixerModel,
		CanonicalFile:    "optimind_code.py",
		AttemptFile:      func(i int) string { return fmt.Sprintf("optimind_code_%d.py", i) },
		ErrorFile:        errorFile,
		FixPrompt:        FixPrompt,
		SkipConsumesSlot: true,
	}
}

func errorFile(i int) string { return fmt.Sprintf("error_%d.txt", i) }

func (v Variant) withDefaults() Variant {
	if v.Timeout <= 0 {
		v.Timeout = DefaultTimeout
	}
	if v.Interpreter == "" {
		v.Interpreter = DefaultInterpreter
	}
	if v.FixerModel == "" {
		v.FixerModel = DefaultFixerModel
	}
	if v.CanonicalFile == "" {
		v.CanonicalFile = "code.py"
	}
	if v.AttemptFile == nil {
		v.AttemptFile = func(i int) string { return fmt.Sprintf("code_%d.py", i) }
	}
	if v.ErrorFile == nil {
		v.ErrorFile = errorFile
	}
	if v.FixPrompt == nil {
		v.FixPrompt = FixPrompt
	}
	return v
}

const fence = "```"

// FixPrompt asks the fixer model for a minimal, model-preserving fix.
func FixPrompt(description, code, output string) string {
	return heredoc.Docf(`
		You are an expert Python debugger specialising in GurobiPy optimization code.

		The following GurobiPy code was generated to solve an optimization problem but
		it **failed** when executed. Your job is to fix **only** the bugs. Do not
		change the mathematical model or the approach. Keep the fix minimal.

		## Problem description
		%[1]s

		## Code that failed
		%[4]spython
		%[2]s
		%[4]s

		## Error / output
		%[4]s
		%[3]s
		%[4]s

		Return **only** the corrected Python code inside a single fenced code block:

		%[4]spython
		# corrected code here
		%[4]s

		Do NOT include any explanation outside the code block.
	`, description, code, output, fence)
}
