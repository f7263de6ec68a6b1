// Package natsbus bridges the notification log onto NATS JetStream: a
// Publisher relays local notifications out as JetStream messages, and a
// Consumer pull-subscribes to a subject hierarchy and hands decoded
// notifications to a caller-supplied Handler with Ack/Nak/Term semantics.
// This is an optional transport alongside notification.RemoteNotificationLog's
// HTTP pull — the same relationship go-core/natsclient has to this module's
// teacher, where services are free to expose both an HTTP API and a NATS
// consumer over the same domain events.
package natsbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Client wraps a NATS connection and its JetStream context, adapted from
// packages/go-core/natsclient.Client.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
	Log  *zap.Logger
}

// NewClient connects to NATS and initializes a JetStream context.
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsbus: jetstream: %w", err)
	}

	logger.Info("natsbus connected", zap.String("url", url))
	return &Client{Conn: nc, JS: js, Log: logger}, nil
}

// Close drains pending publishes and subscriptions before closing, falling
// back to a hard Close if Drain itself errors (e.g. already disconnected).
func (c *Client) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
	}
}

// ProvisionStream idempotently ensures a JetStream stream named name exists
// covering subjects. It is a no-op if the stream already exists.
func (c *Client) ProvisionStream(name string, subjects []string) error {
	if _, err := c.JS.StreamInfo(name); err == nil {
		c.Log.Info("natsbus stream already exists", zap.String("stream", name))
		return nil
	}

	cfg := &nats.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("natsbus: create stream %s: %w", name, err)
	}
	c.Log.Info("natsbus stream provisioned", zap.String("stream", name), zap.Strings("subjects", subjects))
	return nil
}
