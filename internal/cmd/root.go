package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/genpod/internal/config"
	"github.com/felixgeelhaar/genpod/internal/log"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// settings and logger are populated before any subcommand runs.
	settings *config.Config
	logger   = log.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "genpod",
	Short: "Multi-agent project generator",
	Long: `genpod turns a natural-language project request into a generated code base.

A supervisor drives a team of specialist agents (knowledge retrieval, architect,
planner, test generator, coder and reviewer) through a fixed set of project
phases. Every step is checkpointed, so an interrupted run resumes where it
stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		settings = cfg
		logger = setupLogging(cfg)
		if cfg.File != "" {
			logger.Debug("configuration loaded", "file", cfg.File)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./genpod.yaml or $HOME/.genpod/genpod.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}
