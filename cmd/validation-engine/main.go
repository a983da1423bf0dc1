// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the validation-engine CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/logging"
	"github.com/pdiddy/validation-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from the secrets directory at startup.
	loadedSecrets = secrets.Secrets{}

	// logger is built from --log-level and --log-format before any command runs.
	logger = zap.NewNop()
)

// rootCmd is the base command for the validation-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "validation-engine",
	Short: "Staged market research: narrow a niche, check demand, mine pain, build an offer",
	Long: `validation-engine walks a market idea through a fixed sequence of phases.
Start with a core market, pick a category and a sub-niche, optionally check
its popularity trend, mine real complaints from discussion sites, then build
pain points, a business idea, a defensible moat and a landing-page prompt.

Each phase is a subcommand acting on the current session. Sessions persist
between runs; use "session new" to start one and "report" to export the
finished analysis.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log.level")
		format := logging.Format(viper.GetString("log.format"))
		l, err := logging.New(level, format)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./validation-engine.yaml or ~/.config/validation-engine/config.yaml)")
	pf.String("state-dir", "", "directory holding the session database and current-session pointer (default .validation-engine)")
	pf.String("secrets-dir", "", "directory of API key files (default .secrets)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default warn)")
	pf.String("log-format", "", "log format: console or json (default console)")
	pf.String("session", "", "session ID (default: the current session)")

	viper.BindPFlag("session.state_dir", pf.Lookup("state-dir"))
	viper.BindPFlag("secrets_dir", pf.Lookup("secrets-dir"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))

	setDefaults()
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("validation-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "validation-engine"))
		}
	}

	viper.SetEnvPrefix("VALIDATION_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
