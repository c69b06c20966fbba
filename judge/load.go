package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lexcodex/optima/formulation"
	"github.com/lexcodex/optima/repair"
	"github.com/lexcodex/optima/solver"
)

// Variant names one of the two competing solvers.
type Variant string

const (
	OptiMUS  Variant = "optimus"
	OptiMind Variant = "optimind"
)

// Display is the capitalized name used in prompts and reasons.
func (v Variant) Display() string {
	switch v {
	case OptiMUS:
		return "OptiMUS"
	case OptiMind:
		return "OptiMind"
	}
	return string(v)
}

// Other returns the competing variant.
func (v Variant) Other() Variant {
	if v == OptiMUS {
		return OptiMind
	}
	return OptiMUS
}

// Direction is the optimization sense.
type Direction string

const (
	Maximize         Direction = "maximize"
	Minimize         Direction = "minimize"
	DirectionUnknown Direction = "unknown"
)

// DetectDirection reads the sense from the program text. MAXIMIZE is checked
// first, so a program mentioning both is treated as a maximization.
func DetectDirection(code *string) Direction {
	if code == nil {
		return ""
	}
	upper := strings.ToUpper(*code)
	switch {
	case strings.Contains(upper, "MAXIMIZE"):
		return Maximize
	case strings.Contains(upper, "MINIMIZE"):
		return Minimize
	}
	return ""
}

// Problem is the judged problem's model input.
type Problem struct {
	Description *string
	Parameters  json.RawMessage
}

// LoadProblem reads model_input/desc.txt and model_input/params.json. Either
// may be missing.
func LoadProblem(problemDir string) (Problem, error) {
	modelDir := filepath.Join(problemDir, "model_input")
	desc, err := readText(filepath.Join(modelDir, "desc.txt"))
	if err != nil {
		return Problem{}, err
	}
	p := Problem{Description: desc}
	params, err := readText(filepath.Join(modelDir, "params.json"))
	if err != nil {
		return Problem{}, err
	}
	if params != nil && json.Valid([]byte(*params)) {
		p.Parameters = json.RawMessage(*params)
	}
	return p, nil
}

// SolverOutput is everything the judge knows about one solver's run.
type SolverOutput struct {
	Variant      Variant
	Code         *string
	LogRaw       *string
	LogClean     string
	ObjectiveRaw *string
	Objective    *float64
	Status       Status
	Direction    Direction
	Available    bool

	// State is the OptiMUS formulation, when present.
	State *formulation.State
	// Response is the raw OptiMind reply, when present.
	Response *string
}

// IsAvailable is nil-safe.
func (s *SolverOutput) IsAvailable() bool { return s != nil && s.Available }

// EffectiveStatus is the status used by the decision rules; an unavailable
// solver counts as not_run.
func (s *SolverOutput) EffectiveStatus() Status {
	if !s.IsAvailable() {
		return StatusNotRun
	}
	return s.Status
}

// LoadSolver reads one solver directory. A missing directory yields nil with
// no error. Files are trimmed and an empty file counts as missing.
func LoadSolver(dir, codeFile string, v Variant) (*SolverOutput, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := &SolverOutput{Variant: v}
	if out.Code, err = readText(filepath.Join(dir, codeFile)); err != nil {
		return nil, err
	}
	if out.LogRaw, err = readText(filepath.Join(dir, repair.OutputFile)); err != nil {
		return nil, err
	}
	if out.ObjectiveRaw, err = readText(filepath.Join(dir, repair.TrailerMarker)); err != nil {
		return nil, err
	}
	out.Objective = parseObjective(out.ObjectiveRaw)
	out.Status = Classify(out.LogRaw, out.Objective)
	if !out.Status.Success() {
		out.Objective = nil
	}
	if out.LogRaw != nil {
		out.LogClean = TrimSolverLog(*out.LogRaw, DefaultTrimLines)
	}
	out.Direction = DetectDirection(out.Code)
	out.Available = out.Code != nil || out.LogRaw != nil
	return out, nil
}

// LoadOptiMUS loads optimus_output/ together with its final formulation
// snapshot.
func LoadOptiMUS(problemDir string) (*SolverOutput, error) {
	dir := filepath.Join(problemDir, solver.OptiMUSDir)
	out, err := LoadSolver(dir, repair.OptiMUSVariant().CanonicalFile, OptiMUS)
	if out == nil || err != nil {
		return out, err
	}
	state, err := formulation.NewSnapshots(dir).Load(formulation.SnapshotCode)
	if err == nil {
		out.State = state
	}
	return out, nil
}

// LoadOptiMind loads optimind_output/ together with the model's reply.
func LoadOptiMind(problemDir string) (*SolverOutput, error) {
	dir := filepath.Join(problemDir, solver.OptiMindDir)
	out, err := LoadSolver(dir, repair.OptiMindVariant().CanonicalFile, OptiMind)
	if out == nil || err != nil {
		return out, err
	}
	if out.Response, err = readText(filepath.Join(dir, solver.ResponseFile)); err != nil {
		return nil, err
	}
	return out, nil
}

func readText(path string) (*string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

// parseObjective accepts any finite float; non-finite values cannot be
// stored in the verdict and are treated as unparseable.
func parseObjective(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FormatObjective renders a value the way the solver logs do: integral
// values keep a trailing ".0", very large or small values use exponent form.
func FormatObjective(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatObjectivePtr(v *float64) string {
	if v == nil {
		return "None"
	}
	return FormatObjective(*v)
}
