// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package mq

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
)

// RabbitMQConfig selects the broker and how queues are declared.
type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
}

// channel is the subset of *amqp.Channel the client uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQClient publishes to RabbitMQ queues over one connection/channel pair.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         channel
	queueDurable    bool
	queueAutoDelete bool

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQClient dials the broker and opens a channel.
func NewRabbitMQClient(cfg RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, oops.Code("MQ_CONFIG_INVALID").Errorf("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, oops.Code("MQ_CONNECT_FAILED").With("operation", "dial").Wrap(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("MQ_CONNECT_FAILED").With("operation", "open channel").Wrap(err)
	}

	client := newRabbitMQClient(ch, cfg)
	client.conn = conn
	return client, nil
}

func newRabbitMQClient(ch channel, cfg RabbitMQConfig) *RabbitMQClient {
	return &RabbitMQClient{
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		declared:        make(map[string]bool),
	}
}

// Publish sends data to the named queue, declaring it on first use.
func (r *RabbitMQClient) Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(queue) == "" {
		return "", oops.Code("MQ_PUBLISH_FAILED").Errorf("rabbitmq queue is required")
	}

	if err := r.declareQueue(queue); err != nil {
		return "", oops.Code("MQ_PUBLISH_FAILED").
			With("operation", "declare queue").
			With("queue", queue).
			Wrap(err)
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := ulid.Make().String()
	err := r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  contentType(attrs),
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", oops.Code("MQ_PUBLISH_FAILED").
			With("operation", "publish").
			With("queue", queue).
			Wrap(err)
	}
	return messageID, nil
}

// Close closes the channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.declared[name] {
		return nil
	}
	if _, err := r.channel.QueueDeclare(name, r.queueDurable, r.queueAutoDelete, false, false, nil); err != nil {
		return err
	}
	r.declared[name] = true
	return nil
}

// AttrContentType overrides the published content type.
const AttrContentType = "content-type"

func contentType(attrs map[string]string) string {
	if ct := attrs[AttrContentType]; ct != "" {
		return ct
	}
	return "application/octet-stream"
}
