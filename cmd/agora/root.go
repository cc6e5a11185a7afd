// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/agora-forum/agora/internal/config"
	"github.com/agora-forum/agora/internal/logging"
)

// serviceName identifies this process in logs.
const serviceName = "agora"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Agora CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agora",
		Short: "Agora - forum authentication service",
		Long: `Agora serves account registration, login, sessions and
password recovery for the forum over a JSON HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneCmd())

	return cmd
}

// loadConfig loads and validates configuration, letting cmd's explicitly
// set flags override every other source.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfigUnvalidated(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.With("config_file", configFile).Wrap(err)
	}
	return cfg, nil
}

func loadConfigUnvalidated(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{File: configFile, Flags: cmd.Flags()})
}

// setupLogger builds the process logger from cfg and installs it as the default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := logging.SetupWithOptions(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr(),
		logging.Options{Level: logging.ParseLevel(cfg.Log.Level)})
	slog.SetDefault(logger)
	return logger
}
