// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package notify delivers out-of-band messages such as password reset links.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/internal/mq"
)

// DefaultSubject is used for every reset message.
const DefaultSubject = "Reset your password"

// DefaultQueue receives outgoing mail when no queue is configured.
const DefaultQueue = "agora.mail"

// Mail is the payload handed to the mail delivery worker.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// QueueNotifier publishes each message as JSON Mail onto a broker queue.
type QueueNotifier struct {
	publisher mq.Publisher
	queue     string
	subject   string
}

// NewQueueNotifier creates a QueueNotifier. An empty queue selects DefaultQueue.
func NewQueueNotifier(publisher mq.Publisher, queue string) *QueueNotifier {
	if queue == "" {
		queue = DefaultQueue
	}
	return &QueueNotifier{publisher: publisher, queue: queue, subject: DefaultSubject}
}

// Send implements auth.Notifier.
func (n *QueueNotifier) Send(ctx context.Context, address, message string) error {
	if strings.TrimSpace(address) == "" {
		return oops.Code("NOTIFY_INVALID_ADDRESS").Errorf("address is required")
	}

	payload, err := json.Marshal(Mail{To: address, Subject: n.subject, Body: message})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	if _, err := n.publisher.Publish(ctx, n.queue, payload, map[string]string{
		mq.AttrContentType: "application/json",
	}); err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("queue", n.queue).
			Wrap(err)
	}
	return nil
}

// WriterNotifier writes each message to w. It serves as a development outbox.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a WriterNotifier over w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Send implements auth.Notifier.
func (n *WriterNotifier) Send(_ context.Context, address, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := fmt.Fprintf(n.w, "To: %s\nSubject: %s\n\n%s\n\n", address, DefaultSubject, message); err != nil {
		return oops.Code("NOTIFY_WRITE_FAILED").Wrap(err)
	}
	return nil
}

var (
	_ auth.Notifier = (*QueueNotifier)(nil)
	_ auth.Notifier = (*WriterNotifier)(nil)
)
