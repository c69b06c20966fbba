package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDelimitedRegion means the response has no =====-closed region.
	ErrNoDelimitedRegion = errors.New("no ===== delimited region")
	// ErrNoBalancedRegion means no balanced {...} or [...] block was found.
	ErrNoBalancedRegion = errors.New("no balanced bracket region")
	// ErrInvalidJSON means a balanced region was found but did not decode.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrMissingField means a decoded object lacks a required key.
	ErrMissingField = errors.New("missing field")
)

const previewLimit = 300

// ExtractionError reports that a model response could not be parsed into the
// structure a stage expected.
type ExtractionError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ExtractionError) Error() string {
	stage := e.Stage
	if stage == "" {
		stage = "extract"
	}
	return fmt.Sprintf("%s: %v (response: %q)", stage, e.Err, preview(e.Raw))
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// WithStage returns a copy of err labelled with stage when err is an
// ExtractionError; other errors are returned untouched.
func WithStage(err error, stage string) error {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		cp := *ee
		cp.Stage = stage
		return &cp
	}
	return err
}

func newError(raw string, err error) *ExtractionError {
	return &ExtractionError{Raw: raw, Err: err}
}

func preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "..."
}
