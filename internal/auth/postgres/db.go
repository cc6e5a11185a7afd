// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use. It is satisfied
// by pgxmock pools in unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// utc normalizes timestamps read back from TIMESTAMPTZ columns.
func utc(t time.Time) time.Time {
	return t.UTC()
}
