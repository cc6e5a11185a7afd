// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"bytes"
	"sync"
	"testing"
)

// memoryEnv selects in-process backends so commands run without services.
func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AGORA_STORE_BACKEND", "memory")
	t.Setenv("AGORA_SESSIONS_BACKEND", "memory")
	t.Setenv("AGORA_NOTIFY_BACKEND", "stdout")
	t.Setenv("AGORA_AUTH_BCRYPT_COST", "4")
	t.Setenv("AGORA_LOG_LEVEL", "error")
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
