package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexcodex/optima/framework"
)

// ErrNoConverter is returned when model inputs are missing and no converter
// command is configured.
var ErrNoConverter = errors.New("no raw-to-model converter configured")

// DefaultConvertTimeout bounds the external converter.
const DefaultConvertTimeout = 10 * time.Minute

// Convert runs the configured raw-to-model command, which must leave
// model_input/desc.txt and model_input/params.json behind. Every "{dir}" in
// the command is replaced with dir.
func Convert(ctx context.Context, runner framework.CommandRunner, dir string, command []string) error {
	if len(command) == 0 {
		return ErrNoConverter
	}
	if runner == nil {
		runner = framework.NewLocalCommandRunner()
	}
	args := make([]string, len(command))
	for i, a := range command {
		args[i] = strings.ReplaceAll(a, "{dir}", dir)
	}
	res, err := runner.Run(ctx, framework.CommandRequest{Args: args, Timeout: DefaultConvertTimeout})
	if err != nil {
		return fmt.Errorf("run converter: %w", err)
	}
	if res.TimedOut {
		return fmt.Errorf("converter timed out after %s", DefaultConvertTimeout)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("converter exited with status %d: %s", res.ExitCode, lastLine(res.Combined()))
	}
	if !HasModelInput(dir) {
		return fmt.Errorf("converter finished but %s/%s/%s is missing", dir, ModelInputDir, DescFile)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
