// Package doctor checks the external prerequisites a run depends on: the
// Python interpreter with gurobipy, the OptiMind server and the hosted API
// credentials.
package doctor

import (
	"context"
	"net/http"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/lexcodex/optima/framework"
)

// Status values reported by a check.
const (
	StatusOK          = "ok"
	StatusMissing     = "missing"
	StatusUnreachable = "unreachable"
)

// PrereqStatus captures the status of a prerequisite check.
type PrereqStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// OK reports whether the check passed.
func (p PrereqStatus) OK() bool { return p.Status == StatusOK }

// Options selects what Check covers.
type Options struct {
	Interpreter string
	OptiMindURL string
	// Keys maps an environment variable name to its loaded value.
	Keys map[string]string

	Runner     framework.CommandRunner
	HTTPClient *http.Client
	LookPath   func(string) (string, error)
}

// Check runs every check in a fixed order.
func Check(ctx context.Context, opts Options) []PrereqStatus {
	if opts.Interpreter == "" {
		opts.Interpreter = "python"
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Runner == nil {
		opts.Runner = framework.NewLocalCommandRunner()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Second}
	}

	var results []PrereqStatus
	interp := checkBinary(opts.LookPath, opts.Interpreter)
	results = append(results, interp)
	if interp.OK() {
		results = append(results, checkGurobi(ctx, opts.Runner, opts.Interpreter))
	} else {
		results = append(results, PrereqStatus{Name: "gurobipy", Status: StatusMissing, Details: "interpreter not found"})
	}
	if opts.OptiMindURL != "" {
		results = append(results, checkOptiMind(ctx, opts.HTTPClient, opts.OptiMindURL))
	}
	for _, name := range sortedKeys(opts.Keys) {
		results = append(results, checkKey(name, opts.Keys[name]))
	}
	return results
}

// Healthy reports whether every check passed.
func Healthy(results []PrereqStatus) bool {
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}

func checkBinary(lookPath func(string) (string, error), bin string) PrereqStatus {
	path, err := lookPath(bin)
	if err != nil {
		return PrereqStatus{Name: bin, Status: StatusMissing, Details: err.Error()}
	}
	return PrereqStatus{Name: bin, Status: StatusOK, Details: path}
}

func checkGurobi(ctx context.Context, runner framework.CommandRunner, interpreter string) PrereqStatus {
	status := PrereqStatus{Name: "gurobipy"}
	res, err := runner.Run(ctx, framework.CommandRequest{
		Args:    []string{interpreter, "-c", "import gurobipy; print(gurobipy.gurobi.version())"},
		Timeout: 30 * time.Second,
	})
	switch {
	case err != nil:
		status.Status, status.Details = StatusMissing, err.Error()
	case res.ExitCode != 0 || res.TimedOut:
		status.Status, status.Details = StatusMissing, lastLine(res.Combined())
	default:
		status.Status, status.Details = StatusOK, "version "+strings.TrimSpace(res.Stdout)
	}
	return status
}

func checkOptiMind(ctx context.Context, client *http.Client, baseURL string) PrereqStatus {
	status := PrereqStatus{Name: "optimind-server"}
	url := strings.TrimRight(baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Status, status.Details = StatusUnreachable, err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Status, status.Details = StatusUnreachable, err.Error()
		return status
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		status.Status, status.Details = StatusUnreachable, resp.Status
		return status
	}
	status.Status, status.Details = StatusOK, "endpoint reachable"
	return status
}

func checkKey(name, value string) PrereqStatus {
	if strings.TrimSpace(value) == "" {
		return PrereqStatus{Name: name, Status: StatusMissing, Details: "not set"}
	}
	return PrereqStatus{Name: name, Status: StatusOK, Details: "set"}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
