// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package memory provides in-process implementations of the auth
// repositories for development and tests. Sessions and reset records are
// held in a go-cache TTL cache so they expire without a janitor.
package memory
