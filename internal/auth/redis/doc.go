// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package redis stores sessions and password reset records in Redis.
// Every key carries a TTL matching the record's expiry, so Redis removes
// expired entries itself and DeleteExpired has nothing to do.
package redis
