// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/agora-forum/agora/internal/observability"
	"github.com/agora-forum/agora/internal/web"
	"github.com/agora-forum/agora/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the JSON HTTP API, the metrics and health endpoints,
and the background sweeper for expired sessions and reset tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, nil)
		},
	}

	cmd.Flags().String("http-addr", "", "HTTP API listen address")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address")
	cmd.Flags().String("log-format", "", "log format (json, text or console)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")

	return cmd
}

// runServeWithDeps serves until ctx is cancelled.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	logger.Info("starting agora",
		"version", version,
		"environment", cfg.Environment,
		"store", cfg.Store.Backend,
		"sessions", cfg.Sessions.Backend,
		"notify", cfg.Notify.Backend,
	)

	a, err := openApp(ctx, cfg, logger, deps)
	if err != nil {
		return err
	}
	defer a.Close()

	obs := observability.NewServer(cfg.Metrics.Addr, a.ready, logger)

	notifier, err := a.notifier(deps)
	if err != nil {
		return err
	}
	svc, err := a.authService(notifier, obs.Metrics())
	if err != nil {
		return oops.Code("APP_OPEN_FAILED").With("operation", "build auth service").Wrap(err)
	}

	var obsErrs <-chan error
	if cfg.Metrics.Addr != "" {
		if obsErrs, err = obs.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := obs.Stop(shutdownCtx); err != nil {
				errutil.LogError(logger, "observability shutdown failed", err)
			}
		}()
	}

	router := web.NewRouter(web.RouterOptions{
		Auth: svc,
		Cookie: web.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Production(),
			MaxAge: cfg.Session.TTL,
		},
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
		Instrument:  obs.Metrics().Instrument,
	})

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	server := web.NewServer(cfg.HTTP.Addr, router, logger)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		a.janitor().Run(janitorCtx)
	}()
	defer func() {
		stopJanitor()
		<-janitorDone
	}()

	serveErrs := make(chan error, 1)
	go func() { serveErrs <- server.Serve(listener) }()

	if deps.Ready != nil {
		deps.Ready(listener.Addr().String())
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErrs:
		return err
	case err := <-obsErrs:
		if err != nil {
			return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErrs
}
