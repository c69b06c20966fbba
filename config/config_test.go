package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDottedHelpers(t *testing.T) {
	data := map[string]interface{}{
		"repair": map[string]interface{}{
			"interpreter": "python",
		},
	}
	value, ok := GetValue(data, "repair.interpreter")
	require.True(t, ok)
	require.Equal(t, "python", value)

	require.NoError(t, SetValue(data, "repair.interpreter", "python3"))
	value, ok = GetValue(data, "repair.interpreter")
	require.True(t, ok)
	require.Equal(t, "python3", value)

	require.NoError(t, SetValue(data, "optimind.max_tokens", ParseValue("4096")))
	value, ok = GetValue(data, "optimind.max_tokens")
	require.True(t, ok)
	require.Equal(t, int64(4096), value)

	_, ok = GetValue(data, "repair.interpreter.path")
	assert.False(t, ok)
	require.Error(t, SetValue(data, "repair..x", 1))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, int64(3), ParseValue("3"))
	assert.Equal(t, 0.4, ParseValue("0.4"))
	assert.Equal(t, "gpt-4o", ParseValue("gpt-4o"))
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3, cfg.Repair.OptiMUSBudget)
	assert.Equal(t, 5, cfg.Repair.OptiMindBudget)
	assert.Equal(t, "gpt-4o", cfg.Models.Judge)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repair:\n  timeout_seconds: 30\nmodels:\n  judge: gpt-4.1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Repair.TimeoutSeconds)
	assert.Equal(t, "python", cfg.Repair.Interpreter)
	assert.Equal(t, "gpt-4.1", cfg.Models.Judge)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Models.Formulation)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Converter.Command = []string{"python", "raw_to_model.py", "--dir", "{dir}"}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	data, err := ReadMap(path)
	require.NoError(t, err)
	v, ok := GetValue(data, "optimind.model")
	require.True(t, ok)
	assert.Equal(t, "microsoft/OptiMind-SFT", v)
}

func TestDefaultMap(t *testing.T) {
	v, ok := GetValue(DefaultMap(), "workspace.max_archives")
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GROQ_API_KEY=from-file\nOPTIMIND_SERVER_URL=http://gpu:30000/v1\n"), 0o644))
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("OPTIMIND_SERVER_URL", "")
	os.Unsetenv("OPTIMIND_SERVER_URL")

	env, err := LoadEnv(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", env.GroqAPIKey)
	assert.Equal(t, "http://gpu:30000/v1", env.OptiMindServerURL)
	assert.Equal(t, "http://gpu:30000/v1", Default().OptiMindURL(env))
	assert.Equal(t, "http://localhost:30000/v1", Default().OptiMindURL(Env{}))
}
