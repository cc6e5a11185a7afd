// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package redis

import "time"

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "agora:"

// minTTL is used for records that are already expired when written.
// Redis rejects a zero or negative expiry on SET.
const minTTL = time.Millisecond

func ttlUntil(expiresAt time.Time) time.Duration {
	if d := time.Until(expiresAt); d >= minTTL {
		return d
	}
	return minTTL
}
