// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package config

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Validate checks that the configuration is usable and internally consistent.
func (c *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	oneOf := func(key, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			fail("%s must be one of %v, got %q", key, allowed, value)
		}
	}

	oneOf("environment", c.Environment, "development", "test", "production")
	oneOf("log.format", c.Log.Format, "json", "text", "console")
	oneOf("store.backend", c.Store.Backend, BackendPostgres, BackendMemory)
	oneOf("sessions.backend", c.Sessions.Backend, BackendPostgres, BackendRedis, BackendMemory)
	oneOf("notify.backend", c.Notify.Backend, BackendRabbitMQ, BackendStdout)
	oneOf("auth.hasher", c.Auth.Hasher, "bcrypt", "argon2id")

	if c.HTTP.Addr == "" {
		fail("http.addr is required")
	}
	if u, err := url.Parse(c.HTTP.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		fail("http.public_url must be an absolute URL, got %q", c.HTTP.PublicURL)
	}

	needsDB := c.Store.Backend == BackendPostgres || c.Sessions.Backend == BackendPostgres
	if needsDB && c.Database.URL == "" {
		fail("database.url is required for the postgres backend")
	}
	if c.Sessions.Backend == BackendPostgres && c.Store.Backend != BackendPostgres {
		// Session and reset rows reference the users table.
		fail("sessions.backend postgres requires store.backend postgres, got %q", c.Store.Backend)
	}
	if c.Sessions.Backend == BackendRedis && c.Redis.Addr == "" {
		fail("redis.addr is required for the redis sessions backend")
	}
	if c.Notify.Backend == BackendRabbitMQ && c.RabbitMQ.URL == "" {
		fail("rabbitmq.url is required for the rabbitmq notify backend")
	}

	if c.Session.CookieName == "" {
		fail("session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		fail("session.ttl must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		fail("auth.reset_ttl must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		fail("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Janitor.Interval <= 0 {
		fail("janitor.interval must be positive")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %v", problems)
	}
	return nil
}
