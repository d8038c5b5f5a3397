package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/regress/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for regress
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regress",
		Short: "Regression test suite for calibration pipelines",
		Long: `Regress runs calibration pipeline programs (calacs.e, calstis.e, calwf3.e,
wf3cte.e) against every raw data file selected from a regression data tree,
records a pass/fail outcome and a log per test, and compares the products
against a reference tree.

Configuration is loaded from .regress/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .regress/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (default: from config)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewFindCommand())
	cmd.AddCommand(NewDiffCommand())
	cmd.AddCommand(NewMoveCommand())
	cmd.AddCommand(NewCleanCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// loadConfig loads the configuration named by --config, or the default
// .regress/config.yaml, and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	home, err := config.GetRegressHome()
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(home)

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.MergeWithFlags(nil, nil, &level, nil)
	}
	return cfg, nil
}
