// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"
)

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions and password reset tokens once",
		Long: `Run a single sweep of the session and reset stores, for
deployments that schedule cleanup externally instead of in serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPruneWithDeps(cmd.Context(), cmd, nil)
		},
	}
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	return cmd
}

func runPruneWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	a, err := openApp(ctx, cfg, logger, deps)
	if err != nil {
		return err
	}
	defer a.Close()

	removed := a.janitor().Sweep(ctx)
	cmd.Printf("removed %d expired records\n", removed)
	return nil
}
