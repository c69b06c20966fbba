package formulation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexcodex/optima/framework"
)

// Snapshot names, in pipeline order.
const (
	SnapshotParams             = "state_1_params"
	SnapshotObjective          = "state_2_objective"
	SnapshotConstraints        = "state_3_constraints"
	SnapshotConstraintsModeled = "state_4_constraints_modeled"
	SnapshotObjectiveModeled   = "state_5_objective_modeled"
	SnapshotCode               = "state_6_code"
)

// Snapshots persists each stage's complete state under runDir so any stage can
// be inspected or resumed.
type Snapshots struct {
	dir string
}

// NewSnapshots stores snapshots in dir.
func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{dir: dir}
}

// Path returns the file backing a snapshot name.
func (s *Snapshots) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save writes state as indented JSON.
func (s *Snapshots) Save(name string, state *State) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := framework.WriteFileAtomic(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Load reads a previously saved snapshot.
func (s *Snapshots) Load(name string) (*State, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &state, nil
}
