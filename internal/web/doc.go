// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package web exposes the auth operations as a JSON API over HTTP. The
// session travels in an HttpOnly cookie that handlers read into an
// auth.SessionHandle and write back from it.
package web
