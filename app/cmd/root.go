package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/config"
	"github.com/lexcodex/optima/workspace"
)

var (
	cfgFile  string
	dir      string
	logLevel string
	model    string

	globalCfg *config.Config
	globalEnv config.Env
	logger    *slog.Logger
	logFile   io.Closer
)

// Execute is the entry point for the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "optima",
		Short:         "Formulate, solve and judge optimization problems with two competing LLM pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return fmt.Errorf("load .env: %w", err)
			}
			globalEnv = env
			if cfgFile == "" {
				cfgFile = config.DefaultPath(".")
			}
			cfg, err := config.Load(cfgFile)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", cfgFile, err)
			}
			globalCfg = cfg
			if logFile != nil {
				logFile.Close()
			}
			logger, logFile = setupLogging(cmd.ErrOrStderr(), globalCfg.Logging, logLevel)
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dir, "dir", workspace.DefaultDir, "Problem directory")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to optima config file (default optima_cfg/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&model, "model", "", "Model id for the formulation pipeline and the judge")

	root.AddCommand(
		newRunCmd(),
		newSolveCmd(),
		newJudgeCmd(),
		newReportCmd(),
		newWorkspaceCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newDoctorCmd(),
	)
	return root
}
