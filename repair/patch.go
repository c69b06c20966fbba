package repair

import (
	"fmt"
	"regexp"
	"strings"
)

// TrailerMarker is the artifact name whose presence in a program means it
// already records its own result.
const TrailerMarker = "output_solution.txt"

// DefaultModelVar is assumed when no model construction can be found.
const DefaultModelVar = "model"

var modelVarPattern = regexp.MustCompile(`(\w+)\s*=\s*(?:gp\.)?Model\s*\(`)

const trailerTemplate = `

# --- Optima: save objective value ---
if %[1]s.status == GRB.OPTIMAL:
    with open("output_solution.txt", "w") as _f:
        _f.write(str(%[1]s.objVal))
    print("Optimal Objective Value:", %[1]s.objVal)
else:
    with open("output_solution.txt", "w") as _f:
        _f.write(str(%[1]s.status))
    print("Model status:", %[1]s.status)
`

// Trailer returns the block that writes the objective value (or the solver
// status) of modelVar to output_solution.txt.
func Trailer(modelVar string) string {
	return fmt.Sprintf(trailerTemplate, modelVar)
}

// FindModelVar returns the name bound to the first Model(...) construction.
// found is false when the heuristic fell back to DefaultModelVar.
func FindModelVar(code string) (name string, found bool) {
	if m := modelVarPattern.FindStringSubmatch(code); m != nil {
		return m[1], true
	}
	return DefaultModelVar, false
}

// PatchResult describes what Patch did.
type PatchResult struct {
	Code     string
	Applied  bool
	ModelVar string
	Fallback bool
}

// Patch guarantees code writes output_solution.txt. Code that already
// mentions the artifact is returned unchanged, so Patch is idempotent.
func Patch(code string) PatchResult {
	if strings.Contains(code, TrailerMarker) {
		return PatchResult{Code: code}
	}
	name, found := FindModelVar(code)
	return PatchResult{
		Code:     code + Trailer(name),
		Applied:  true,
		ModelVar: name,
		Fallback: !found,
	}
}

