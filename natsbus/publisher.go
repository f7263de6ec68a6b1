package natsbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder"
)

// Publisher relays a local notification log onto JetStream, one subject per
// event topic, so cross-process consumers outside this module can
// subscribe instead of polling notification.RemoteNotificationLog over
// HTTP. The decode-then-publish shape mirrors cdc-worker's replication loop
// (DecodeInsert then JS.Publish), generalized from one fixed subject to a
// per-topic hierarchy so consumers can filter the way
// GlobalAuditConsumer does on "DOMAIN_EVENTS.>".
type Publisher struct {
	client        *Client
	subjectPrefix string
}

// NewPublisher builds a Publisher that publishes under subjectPrefix, e.g.
// "DOMAIN_EVENTS.bank".
func NewPublisher(client *Client, subjectPrefix string) *Publisher {
	return &Publisher{client: client, subjectPrefix: subjectPrefix}
}

// Relay polls reader starting just after cursor, every interval, and
// republishes every notification it finds. It runs until ctx is canceled,
// intended to be launched in its own goroutine the same way
// GlobalAuditConsumer.Start launches its fetch loop.
func (p *Publisher) Relay(ctx context.Context, reader *notification.Reader, cursor uint64, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			next := cursor + 1
			err := reader.Read(ctx, next, func(n recorder.Notification) error {
				if err := p.publishOne(ctx, n); err != nil {
					return err
				}
				cursor = n.ID
				return nil
			})
			if err != nil {
				p.client.Log.Error("natsbus relay failed", zap.Error(err))
			}
		}
	}
}

func (p *Publisher) publishOne(ctx context.Context, n recorder.Notification) error {
	data, err := encodeWireNotification(n)
	if err != nil {
		return fmt.Errorf("natsbus: marshal notification %d: %w", n.ID, err)
	}
	subject := p.subjectPrefix + "." + sanitizeTopic(n.Topic)
	if _, err := p.client.JS.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("natsbus: publish notification %d: %w", n.ID, err)
	}
	return nil
}

// sanitizeTopic turns an event topic like "bank:Account.Opened" into a
// dotted subject token, since NATS subjects cannot contain ':'.
func sanitizeTopic(topic string) string {
	return strings.NewReplacer(":", ".", " ", "_").Replace(topic)
}
