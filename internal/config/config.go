// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package config loads Agora's configuration from defaults, an optional
// YAML file, AGORA_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AGORA_"

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
	BackendStdout   = "stdout"
)

// Config is the complete runtime configuration.
type Config struct {
	Environment string         `koanf:"environment"`
	HTTP        HTTPConfig     `koanf:"http"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Log         LogConfig      `koanf:"log"`
	Database    DatabaseConfig `koanf:"database"`
	Store       BackendConfig  `koanf:"store"`
	Sessions    BackendConfig  `koanf:"sessions"`
	Redis       RedisConfig    `koanf:"redis"`
	Session     SessionConfig  `koanf:"session"`
	Auth        AuthConfig     `koanf:"auth"`
	Notify      BackendConfig  `koanf:"notify"`
	RabbitMQ    RabbitMQConfig `koanf:"rabbitmq"`
	Janitor     JanitorConfig  `koanf:"janitor"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	PublicURL       string        `koanf:"public_url"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig selects the PostgreSQL database.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// BackendConfig names the implementation used for one concern.
type BackendConfig struct {
	Backend string `koanf:"backend"`
}

// RedisConfig selects the Redis server.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
}

// AuthConfig configures hashing and password resets.
type AuthConfig struct {
	ResetTTL   time.Duration `koanf:"reset_ttl"`
	Hasher     string        `koanf:"hasher"`
	BcryptCost int           `koanf:"bcrypt_cost"`
}

// RabbitMQConfig selects the broker and the mail queue.
type RabbitMQConfig struct {
	URL   string `koanf:"url"`
	Queue string `koanf:"queue"`
}

// JanitorConfig configures the expired-record sweeper.
type JanitorConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// Production reports whether the service runs in production.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"environment":           "development",
		"http.addr":             ":8080",
		"http.public_url":       "http://localhost:3000",
		"http.cors_origins":     []string{"http://localhost:3000"},
		"http.shutdown_timeout": 10 * time.Second,
		"metrics.addr":          "127.0.0.1:9100",
		"log.format":            "json",
		"log.level":             "info",
		"database.url":          "",
		"store.backend":         BackendPostgres,
		"sessions.backend":      BackendPostgres,
		"redis.addr":            "localhost:6379",
		"redis.password":        "",
		"redis.db":              0,
		"session.cookie_name":   "agora_sid",
		"session.ttl":           time.Hour,
		"auth.reset_ttl":        time.Hour,
		"auth.hasher":           "bcrypt",
		"auth.bcrypt_cost":      10,
		"notify.backend":        BackendStdout,
		"rabbitmq.url":          "",
		"rabbitmq.queue":        "agora.mail",
		"janitor.interval":      10 * time.Minute,
	}
}

// LoadOptions tells Load where to look beyond the defaults.
type LoadOptions struct {
	// File is an optional YAML file. Empty skips it.
	File string
	// EnvFile is a dotenv file loaded into the environment when present.
	// Empty selects ".env".
	EnvFile string
	// Flags overrides keys with explicitly set flags. Flag names map to keys
	// by turning the first dash into a dot and the rest into underscores,
	// so --http-public-url sets http.public_url.
	Flags *pflag.FlagSet
}

// Load assembles the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("env_file", envFile).Wrap(err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", opts.File).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		fs := opts.Flags
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			return flagKey(f.Name), posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)
	return &cfg, nil
}

// splitList expands comma-separated entries, as given by a single
// environment variable, and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// envKey maps AGORA_HTTP_PUBLIC_URL to http.public_url. Top-level key
// names contain no underscore, so only the first one separates levels.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func flagKey(name string) string {
	key := strings.Replace(name, "-", ".", 1)
	return strings.ReplaceAll(key, "-", "_")
}
