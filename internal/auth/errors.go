// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a create would violate a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate")

// ErrNoSession is returned when a request carries no live session.
var ErrNoSession = errors.New("no session")
