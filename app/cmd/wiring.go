package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lexcodex/optima/config"
	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/judge"
	"github.com/lexcodex/optima/llm"
	"github.com/lexcodex/optima/repair"
	"github.com/lexcodex/optima/report"
	"github.com/lexcodex/optima/solver"
)

// EventsFile collects the run's telemetry inside the problem directory.
const EventsFile = "events.jsonl"

// groqModel is the one Groq-hosted model the formulation stages may request.
const groqModel = "llama3-70b-8192"

// services is everything a command needs to drive the pipeline against one
// problem directory.
type services struct {
	cfg       *config.Config
	gateway   *llm.InstrumentedGateway
	telemetry framework.Telemetry
	events    *framework.JSONFileTelemetry
	progress  *framework.Progress
	logger    *slog.Logger
	runner    framework.CommandRunner
}

func newServices(progress *framework.Progress, problemDir string) (*services, error) {
	cfg := currentConfig()
	log := logger
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(problemDir, 0o755); err != nil {
		return nil, err
	}
	events, err := framework.NewJSONFileTelemetry(filepath.Join(problemDir, EventsFile))
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	telemetry := framework.MultiplexTelemetry{Sinks: []framework.Telemetry{events, framework.SlogTelemetry{Logger: log}}}

	router, err := newRouter(cfg, globalEnv, log)
	if err != nil {
		events.Close()
		return nil, err
	}
	return &services{
		cfg:       cfg,
		gateway:   llm.NewInstrumentedGateway(router, telemetry, cfg.Logging.LLMDebug),
		telemetry: telemetry,
		events:    events,
		progress:  progress,
		logger:    log,
		runner:    framework.NewLocalCommandRunner(),
	}, nil
}

func (s *services) Close() error {
	return s.events.Close()
}

// newRouter maps model ids to backends. Families whose credentials are absent
// still get a route so the failure names the missing variable.
func newRouter(cfg *config.Config, env config.Env, log *slog.Logger) (*llm.Router, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

	var anthropic llm.Backend = llm.Unconfigured("anthropic", "ANTHROPIC_API_KEY")
	if env.AnthropicAPIKey != "" {
		b, err := llm.NewAnthropicBackend(env.AnthropicAPIKey, "", cfg.LLM.AnthropicMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("anthropic backend: %w", err)
		}
		anthropic = b
	}
	var groq llm.Backend = llm.Unconfigured("groq", "GROQ_API_KEY")
	if env.GroqAPIKey != "" {
		groq = llm.NewOpenAIBackend(llm.OpenAIConfig{Name: "groq", APIKey: env.GroqAPIKey, BaseURL: llm.GroqBaseURL, Timeout: timeout})
	}
	var openai llm.Backend = llm.Unconfigured("openai", "OPENAI_API_KEY")
	if env.OpenAIAPIKey != "" {
		openai = llm.NewOpenAIBackend(llm.OpenAIConfig{Name: "openai", APIKey: env.OpenAIAPIKey, Organization: env.OpenAIOrg, Timeout: timeout})
	}
	// The self-hosted server ignores the key but the client insists on one.
	optimind := llm.NewOpenAIBackend(llm.OpenAIConfig{Name: "optimind", APIKey: "EMPTY", BaseURL: cfg.OptiMindURL(env), Timeout: timeout})

	routes := []llm.Route{
		{Name: "anthropic", Match: llm.Prefix("claude-"), Backend: anthropic},
		{Name: "groq", Match: llm.Exact(groqModel), Backend: groq},
		{Name: "optimind", Match: llm.Exact(cfg.OptiMind.Model), Backend: optimind},
	}
	return llm.NewRouter(routes, openai,
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxAttempts: cfg.LLM.MaxAttempts,
			BaseDelay:   time.Duration(cfg.LLM.BaseDelaySeconds * float64(time.Second)),
		}),
		llm.WithRateLimit(cfg.LLM.RequestsPerSecond),
		llm.WithLogger(log),
	), nil
}

func (s *services) deps() solver.Deps {
	return solver.Deps{Logger: s.logger, Telemetry: s.telemetry, Progress: s.progress}
}

func (s *services) loop() *repair.Loop {
	return &repair.Loop{
		Gateway:   s.gateway,
		Executor:  repair.NewExecutor(s.runner, s.cfg.Repair.Interpreter),
		Logger:    s.logger,
		Telemetry: s.telemetry,
		Progress:  s.progress,
	}
}

func (s *services) variant(v repair.Variant, budget int) repair.Variant {
	if budget > 0 {
		v.Budget = budget
	}
	v.Timeout = s.cfg.Repair.Timeout()
	v.Interpreter = s.cfg.Repair.Interpreter
	if s.cfg.Models.Fixer != "" {
		v.FixerModel = s.cfg.Models.Fixer
	}
	return v
}

func (s *services) optimus() *solver.OptiMUS {
	deps := s.deps()
	deps.Loop = s.loop()
	o := solver.NewOptiMUS(deps, s.gateway, pick(model, s.cfg.Models.Formulation))
	o.Variant = s.variant(o.Variant, s.cfg.Repair.OptiMUSBudget)
	return o
}

func (s *services) optimind() *solver.OptiMind {
	deps := s.deps()
	deps.Loop = s.loop()
	params := solver.OptiMindParams{
		Model:            s.cfg.OptiMind.Model,
		Temperature:      s.cfg.OptiMind.Temperature,
		TopP:             s.cfg.OptiMind.TopP,
		FrequencyPenalty: s.cfg.OptiMind.FrequencyPenalty,
		MaxTokens:        s.cfg.OptiMind.MaxTokens,
	}
	o := solver.NewOptiMind(deps, s.gateway, s.gateway, params)
	o.Variant = s.variant(o.Variant, s.cfg.Repair.OptiMindBudget)
	return o
}

func (s *services) engine() *judge.Engine {
	return &judge.Engine{
		Gateway:   s.gateway,
		Model:     pick(model, s.cfg.Models.Judge),
		Logger:    s.logger,
		Telemetry: s.telemetry,
		Progress:  s.progress,
	}
}

func (s *services) consultant() *report.Consultant {
	return &report.Consultant{
		Gateway:   s.gateway,
		Model:     s.cfg.Models.Consultant,
		Logger:    s.logger,
		Telemetry: s.telemetry,
		Progress:  s.progress,
	}
}

func currentConfig() *config.Config {
	if globalCfg == nil {
		globalCfg = config.Default()
	}
	return globalCfg
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
