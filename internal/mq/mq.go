// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package mq publishes messages to a broker.
package mq

import "context"

// Publisher sends a payload to a named queue and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error)
}

// Backend is a broker connection.
type Backend interface {
	Publisher
	Close() error
}
