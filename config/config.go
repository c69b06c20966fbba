package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configDirName = "optima_cfg"

// Dir returns the project-local configuration directory.
func Dir(root string) string {
	if root == "" {
		root = "."
	}
	return filepath.Join(root, configDirName)
}

// DefaultPath returns optima_cfg/config.yaml under root.
func DefaultPath(root string) string {
	return filepath.Join(Dir(root), "config.yaml")
}

// Config matches optima_cfg/config.yaml.
type Config struct {
	Version   string          `yaml:"version"`
	Models    ModelsConfig    `yaml:"models"`
	OptiMind  OptiMindConfig  `yaml:"optimind"`
	Repair    RepairConfig    `yaml:"repair"`
	LLM       LLMConfig       `yaml:"llm"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Converter ConverterConfig `yaml:"converter"`
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
}

// ModelsConfig names the model behind each role.
type ModelsConfig struct {
	Formulation string `yaml:"formulation"`
	Fixer       string `yaml:"fixer"`
	Judge       string `yaml:"judge"`
	Consultant  string `yaml:"consultant"`
}

// OptiMindConfig configures the self-hosted OptiMind server.
type OptiMindConfig struct {
	ServerURL        string  `yaml:"server_url"`
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`
	TopP             float64 `yaml:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	MaxTokens        int     `yaml:"max_tokens"`
}

// RepairConfig bounds program execution.
type RepairConfig struct {
	Interpreter    string `yaml:"interpreter"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	OptiMUSBudget  int    `yaml:"optimus_budget"`
	OptiMindBudget int    `yaml:"optimind_budget"`
}

// Timeout converts TimeoutSeconds.
func (r RepairConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// LLMConfig tunes the gateway.
type LLMConfig struct {
	MaxAttempts        int     `yaml:"max_attempts"`
	BaseDelaySeconds   float64 `yaml:"base_delay_seconds"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	AnthropicMaxTokens int     `yaml:"anthropic_max_tokens"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
}

// WorkspaceConfig locates the working and archive directories.
type WorkspaceConfig struct {
	UploadDir   string `yaml:"upload_dir"`
	HistoryDir  string `yaml:"history_dir"`
	MaxArchives int    `yaml:"max_archives"`
}

// ConverterConfig is the external raw-to-model command. "{dir}" in any
// argument is replaced with the workspace directory.
type ConverterConfig struct {
	Command []string `yaml:"command"`
}

// LoggingConfig describes log output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	LLMDebug   bool   `yaml:"llm_debug"`
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Models: ModelsConfig{
			Formulation: "claude-sonnet-4-20250514",
			Fixer:       "claude-haiku-4-5-20251001",
			Judge:       "gpt-4o",
			Consultant:  "gpt-4o",
		},
		OptiMind: OptiMindConfig{
			ServerURL:        "http://localhost:30000/v1",
			Model:            "microsoft/OptiMind-SFT",
			Temperature:      0.4,
			TopP:             1.0,
			FrequencyPenalty: 0.3,
			MaxTokens:        35000,
		},
		Repair: RepairConfig{
			Interpreter:    "python",
			TimeoutSeconds: 120,
			OptiMUSBudget:  3,
			OptiMindBudget: 5,
		},
		LLM: LLMConfig{
			MaxAttempts:        4,
			BaseDelaySeconds:   2,
			AnthropicMaxTokens: 8192,
			TimeoutSeconds:     600,
		},
		Workspace: WorkspaceConfig{
			UploadDir:   "data_upload",
			HistoryDir:  "query_history",
			MaxArchives: 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(configDirName, "logs", "optima.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		History: HistoryConfig{Path: filepath.Join(configDirName, "history.db")},
	}
}

// Load reads the config at path over the defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Env holds the credentials and endpoints read from the environment.
type Env struct {
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	OpenAIOrg         string
	GroqAPIKey        string
	OptiMindServerURL string
}

// LoadEnv loads .env files (missing ones are skipped) without overriding
// variables already set, then reads the environment.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Env{}, err
		}
	}
	return Env{
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIOrg:         os.Getenv("OPENAI_ORG_ID"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		OptiMindServerURL: os.Getenv("OPTIMIND_SERVER_URL"),
	}, nil
}

// OptiMindURL prefers the environment over the config file.
func (c *Config) OptiMindURL(env Env) string {
	if env.OptiMindServerURL != "" {
		return env.OptiMindServerURL
	}
	return c.OptiMind.ServerURL
}
