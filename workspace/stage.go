package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Input layout inside a workspace.
const (
	RawInputDir   = "raw_input"
	RawDescFile   = "raw_desc.txt"
	RawParamsFile = "raw_params.csv"
	ModelInputDir = "model_input"
	DescFile      = "desc.txt"
	ParamsFile    = "params.json"
)

// Inputs are the source files for one run. CSV and Params are optional.
type Inputs struct {
	Description string
	CSV         string
	// Params is an already structured params.json. When set it is staged
	// straight into model_input/ together with the description.
	Params string
}

// Staged reports which files landed where.
type Staged struct {
	RawDesc     string
	RawCSV      string
	ModelDesc   string
	ModelParams string
}

// StageInputs copies the inputs into raw_input/ under their canonical names
// and, when a params document is supplied, into model_input/ as well.
func StageInputs(dir string, in Inputs) (Staged, error) {
	var st Staged
	if err := requireFile(in.Description, "description"); err != nil {
		return st, err
	}
	if in.CSV != "" {
		if err := requireFile(in.CSV, "data"); err != nil {
			return st, err
		}
	}
	if in.Params != "" {
		if err := requireFile(in.Params, "params"); err != nil {
			return st, err
		}
	}

	st.RawDesc = filepath.Join(dir, RawInputDir, RawDescFile)
	if err := copyFile(in.Description, st.RawDesc); err != nil {
		return st, err
	}
	if in.CSV != "" {
		st.RawCSV = filepath.Join(dir, RawInputDir, RawParamsFile)
		if err := copyFile(in.CSV, st.RawCSV); err != nil {
			return st, err
		}
	}
	if in.Params != "" {
		st.ModelDesc = filepath.Join(dir, ModelInputDir, DescFile)
		st.ModelParams = filepath.Join(dir, ModelInputDir, ParamsFile)
		if err := copyFile(in.Description, st.ModelDesc); err != nil {
			return st, err
		}
		if err := copyFile(in.Params, st.ModelParams); err != nil {
			return st, err
		}
	}
	return st, nil
}

// HasModelInput reports whether model_input/desc.txt exists.
func HasModelInput(dir string) bool {
	return exists(filepath.Join(dir, ModelInputDir, DescFile))
}

func requireFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%s file not found: %s", what, path)
	}
	return nil
}
