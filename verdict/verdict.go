package verdict

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/lexcodex/optima/framework"
)

// Dir and File locate the verdict inside a problem directory.
const (
	Dir  = "final_output"
	File = "verdict.json"
)

// ErrFieldExists is returned when enrichment would overwrite a field.
var ErrFieldExists = errors.New("verdict field already exists")

// ErrNotFound is returned when no verdict has been written yet.
var ErrNotFound = errors.New("verdict not found")

// SolverStatus is the per-solver snapshot recorded in the verdict.
type SolverStatus struct {
	Status         string   `json:"status"`
	ObjectiveValue *float64 `json:"objective_value"`
}

// Solvers holds both solver snapshots.
type Solvers struct {
	OptiMUS  SolverStatus `json:"optimus"`
	OptiMind SolverStatus `json:"optimind"`
}

// Verdict is the judge's durable decision. Field order is the key order of
// the written document and is relied on by report tooling.
type Verdict struct {
	Winner             string   `json:"winner"`
	ObjectiveValue     *float64 `json:"objective_value"`
	Direction          string   `json:"direction"`
	Solvers            Solvers  `json:"solvers"`
	Reasoning          string   `json:"reasoning"`
	OptiMUSAssessment  string   `json:"optimus_assessment"`
	OptiMindAssessment string   `json:"optimind_assessment"`
	ProgrammaticReason string   `json:"programmatic_reason,omitempty"`
	OverrideReason     string   `json:"override_reason,omitempty"`
	// BothFailed marks a winner picked although neither solver produced a
	// usable objective.
	BothFailed         bool     `json:"both_failed,omitempty"`
}

// Store reads and writes final_output/verdict.json for one problem directory.
// Stores for the same directory share one lock, so writers holding separate
// stores still serialize.
type Store struct {
	mu   *sync.Mutex
	path string
}

// pathLocks maps a cleaned verdict path to its *sync.Mutex.
var pathLocks sync.Map

// NewStore returns the store for problemDir.
func NewStore(problemDir string) *Store {
	path := filepath.Join(problemDir, Dir, File)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return &Store{mu: mu.(*sync.Mutex), path: path}
}

// Path is the verdict file location.
func (s *Store) Path() string { return s.path }

// Write replaces the verdict document.
func (s *Store) Write(v Verdict) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return framework.WriteFileAtomic(s.path, append(data, '\n'), 0o644)
}

// Read decodes the verdict. Enrichment fields are ignored; use Raw or Get
// for those.
func (s *Store) Read() (Verdict, error) {
	var v Verdict
	data, err := s.Raw()
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode verdict: %w", err)
	}
	return v, nil
}

// Raw returns the verdict document as stored.
func (s *Store) Raw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNotFound, s.path)
	}
	return data, err
}

// Get looks up a top-level field, including enrichment fields.
func (s *Store) Get(key string) (gjson.Result, error) {
	data, err := s.Raw()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(data, escapeKey(key)), nil
}

// Enrich adds new top-level fields. Existing fields are never replaced: if
// any key is already present the file is left untouched and ErrFieldExists
// is returned.
func (s *Store) Enrich(fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w at %s", ErrNotFound, s.path)
	}
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("verdict at %s is not valid JSON", s.path)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if gjson.GetBytes(data, escapeKey(k)).Exists() {
			return fmt.Errorf("%w: %q", ErrFieldExists, k)
		}
	}
	for _, k := range keys {
		raw, err := json.Marshal(fields[k])
		if err != nil {
			return fmt.Errorf("encode %q: %w", k, err)
		}
		data, err = sjson.SetRawBytes(data, escapeKey(k), raw)
		if err != nil {
			return fmt.Errorf("set %q: %w", k, err)
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact(data), "", "  "); err != nil {
		return fmt.Errorf("format verdict: %w", err)
	}
	out.WriteByte('\n')
	return framework.WriteFileAtomic(s.path, out.Bytes(), 0o644)
}

func compact(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}

var keyEscaper = strings.NewReplacer(`.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`, `:`, `\:`)

func escapeKey(k string) string { return keyEscaper.Replace(k) }

// SolverStatusLabel maps an execution status to the verdict vocabulary:
// success for usable results, not_available for missing solvers, otherwise
// the status itself.
func SolverStatusLabel(available bool, status string) string {
	if !available {
		return "not_available"
	}
	switch status {
	case "optimal", "feasible":
		return "success"
	case "":
		return "not_run"
	}
	return status
}
