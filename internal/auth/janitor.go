// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/agora-forum/agora/pkg/errutil"
)

// DefaultJanitorInterval is how often expired records are purged.
const DefaultJanitorInterval = 10 * time.Minute

// ExpiredDeleter removes expired records from a store.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired sessions and reset tokens from stores
// that do not expire records on their own.
type Janitor struct {
	stores   map[string]ExpiredDeleter
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a Janitor over the named stores. A zero interval
// selects DefaultJanitorInterval.
func NewJanitor(stores map[string]ExpiredDeleter, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{stores: stores, interval: interval, logger: logger.With("component", "janitor")}
}

// Sweep runs one purge over every store and returns the total removed.
// A failing store does not stop the others.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	var total int64
	for name, store := range j.stores {
		n, err := store.DeleteExpired(ctx)
		if err != nil {
			errutil.LogErrorContext(ctx, j.logger, "purge expired records failed", err)
			continue
		}
		if n > 0 {
			j.logger.DebugContext(ctx, "purged expired records", "store", name, "count", n)
		}
		total += n
	}
	return total
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}
