package judge

import "fmt"

// FastPath decides the winner from execution facts alone. A nil winner
// means the comparison prompt must decide; the reason is returned either
// way. Two successful runs always defer to the comparison, even with equal
// objectives: a bare number is never trusted without a formulation review.
func FastPath(optimus, optimind *SolverOutput) (*Variant, string) {
	optOK, mindOK := optimus.IsAvailable(), optimind.IsAvailable()
	if !optOK && !mindOK {
		return nil, "neither solver produced output"
	}
	if !mindOK {
		return variantPtr(OptiMUS), "only OptiMUS produced output"
	}
	if !optOK {
		return variantPtr(OptiMind), "only OptiMind produced output"
	}

	optStatus, mindStatus := optimus.Status, optimind.Status
	switch {
	case optStatus.Success() && !mindStatus.Success():
		return variantPtr(OptiMUS), fmt.Sprintf("OptiMUS succeeded (%s), OptiMind failed (%s)", optStatus, mindStatus)
	case mindStatus.Success() && !optStatus.Success():
		return variantPtr(OptiMind), fmt.Sprintf("OptiMind succeeded (%s), OptiMUS failed (%s)", mindStatus, optStatus)
	case !optStatus.Success() && !mindStatus.Success():
		return nil, fmt.Sprintf("both solvers failed (OptiMUS: %s, OptiMind: %s)", optStatus, mindStatus)
	}

	if a, b := optimus.Objective, optimind.Objective; a != nil && b != nil && *a == *b {
		return nil, fmt.Sprintf("both achieved same objective (%s); LLM to evaluate formulation quality", FormatObjective(*a))
	}
	return nil, "both succeeded with output; LLM to evaluate correctness and compare"
}

// SanityCheck overrides a pick that contradicts the execution facts: a
// failed run never beats a successful one, and a solver without output
// never beats one with output.
func SanityCheck(winner Variant, optimus, optimind *SolverOutput) (Variant, bool, string) {
	side := func(v Variant) *SolverOutput {
		if v == OptiMUS {
			return optimus
		}
		return optimind
	}
	picked, other := side(winner), side(winner.Other())
	pickedStatus, otherStatus := picked.EffectiveStatus(), other.EffectiveStatus()

	if !pickedStatus.Success() && otherStatus.Success() {
		return winner.Other(), true, fmt.Sprintf("LLM picked %s (%s) but %s succeeded (%s)",
			winner.Display(), pickedStatus, winner.Other().Display(), otherStatus)
	}
	if !picked.IsAvailable() && other.IsAvailable() {
		return winner.Other(), true, fmt.Sprintf("LLM picked %s but it has no output", winner.Display())
	}
	return winner, false, ""
}

func variantPtr(v Variant) *Variant { return &v }
