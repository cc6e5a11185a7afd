// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// cleanupInterval is how often go-cache evicts expired items.
const cleanupInterval = time.Minute

func newCache() *cache.Cache {
	return cache.New(cache.NoExpiration, cleanupInterval)
}

// ttlUntil converts an absolute expiry into a go-cache duration.
// go-cache treats non-positive durations as "never expire", so records
// that are already expired get the shortest positive lifetime instead.
func ttlUntil(expiresAt time.Time) time.Duration {
	if d := time.Until(expiresAt); d > 0 {
		return d
	}
	return time.Nanosecond
}

// purge evicts expired items and reports how many were removed.
func purge(c *cache.Cache) int64 {
	before := c.ItemCount()
	c.DeleteExpired()
	return int64(before - c.ItemCount())
}
