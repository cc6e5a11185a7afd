// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/internal/auth/memory"
	"github.com/agora-forum/agora/internal/auth/postgres"
	authredis "github.com/agora-forum/agora/internal/auth/redis"
	"github.com/agora-forum/agora/internal/config"
	"github.com/agora-forum/agora/internal/mq"
	"github.com/agora-forum/agora/internal/notify"
	"github.com/agora-forum/agora/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConnectDB opens the PostgreSQL pool.
	// Default: store.Connect with store.DefaultConnectOptions
	ConnectDB func(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error)

	// ConnectRedis opens the Redis client.
	// Default: authredis.Connect
	ConnectRedis func(ctx context.Context, opts authredis.Options) (*goredis.Client, error)

	// DialBroker connects to the message broker.
	// Default: mq.NewRabbitMQClient
	DialBroker func(cfg mq.RabbitMQConfig) (mq.Backend, error)

	// Outbox receives reset messages when notify.backend is stdout.
	// Default: os.Stdout
	Outbox io.Writer

	// Ready is called with the API address once the HTTP listener is bound.
	Ready func(addr string)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ConnectDB == nil {
		out.ConnectDB = func(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error) {
			opts := store.DefaultConnectOptions()
			opts.Logger = logger
			return store.Connect(ctx, url, opts)
		}
	}
	if out.ConnectRedis == nil {
		out.ConnectRedis = authredis.Connect
	}
	if out.DialBroker == nil {
		out.DialBroker = func(cfg mq.RabbitMQConfig) (mq.Backend, error) {
			return mq.NewRabbitMQClient(cfg)
		}
	}
	if out.Outbox == nil {
		out.Outbox = os.Stdout
	}
	return &out
}

// app holds the wired stores and connections for one command run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	pool  *pgxpool.Pool
	redis *goredis.Client

	users    auth.UserRepository
	sessions auth.SessionRepository
	resets   auth.PasswordResetRepository

	closers []func()
}

// openApp connects the backends cfg selects and builds the repositories.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Deps) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Store.Backend == config.BackendPostgres || cfg.Sessions.Backend == config.BackendPostgres {
		pool, err := deps.ConnectDB(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, oops.Code("APP_OPEN_FAILED").With("backend", "postgres").Wrap(err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		logger.Info("connected to database")
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		a.users = postgres.NewUserRepository(a.pool)
	default:
		a.users = memory.NewUserRepository()
	}

	switch cfg.Sessions.Backend {
	case config.BackendPostgres:
		a.sessions = postgres.NewSessionRepository(a.pool)
		a.resets = postgres.NewPasswordResetRepository(a.pool)
	case config.BackendRedis:
		client, err := deps.ConnectRedis(ctx, authredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, oops.Code("APP_OPEN_FAILED").With("backend", "redis").Wrap(err)
		}
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.sessions = authredis.NewSessionStore(client, "")
		a.resets = authredis.NewResetStore(client, "")
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	default:
		a.sessions = memory.NewSessionRepository()
		a.resets = memory.NewPasswordResetRepository()
	}

	return a, nil
}

// notifier builds the reset message transport cfg selects.
func (a *app) notifier(deps *Deps) (auth.Notifier, error) {
	if a.cfg.Notify.Backend != config.BackendRabbitMQ {
		return notify.NewWriterNotifier(deps.Outbox), nil
	}

	broker, err := deps.DialBroker(mq.RabbitMQConfig{URL: a.cfg.RabbitMQ.URL, QueueDurable: true})
	if err != nil {
		return nil, oops.Code("APP_OPEN_FAILED").With("backend", "rabbitmq").Wrap(err)
	}
	a.closers = append(a.closers, func() { _ = broker.Close() })
	return notify.NewQueueNotifier(broker, a.cfg.RabbitMQ.Queue), nil
}

// authService wires the auth services over the app's repositories.
func (a *app) authService(notifier auth.Notifier, observer auth.Observer) (*auth.Service, error) {
	hasher, err := auth.NewPasswordHasher(a.cfg.Auth.Hasher, a.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(a.sessions, a.cfg.Session.TTL)
	if err != nil {
		return nil, err
	}
	resets, err := auth.NewResetTokenService(a.resets, a.cfg.Auth.ResetTTL)
	if err != nil {
		return nil, err
	}

	return auth.NewAuthService(auth.ServiceConfig{
		Users:     a.users,
		Hasher:    hasher,
		Sessions:  sessions,
		Resets:    resets,
		Notifier:  notifier,
		PublicURL: a.cfg.HTTP.PublicURL,
		Logger:    a.logger,
		Observer:  observer,
	})
}

// janitor sweeps the session and reset stores.
func (a *app) janitor() *auth.Janitor {
	return auth.NewJanitor(map[string]auth.ExpiredDeleter{
		"sessions":        a.sessions,
		"password_resets": a.resets,
	}, a.cfg.Janitor.Interval, a.logger)
}

// ready reports whether the connected backends answer.
func (a *app) ready(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return oops.Code("NOT_READY").With("backend", "postgres").Wrap(err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return oops.Code("NOT_READY").With("backend", "redis").Wrap(err)
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
