package natsbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/recorder"
)

// Handler processes one decoded notification delivered off the bus.
type Handler func(ctx context.Context, n recorder.Notification) error

// PermanentError marks a notification as structurally unprocessable:
// Consumer terms the message instead of Nak-ing it for redelivery, the
// same poison-pill distinction GlobalAuditConsumer draws between
// msg.Term() and msg.Nak().
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "poison pill: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Consumer is a JetStream pull consumer that decodes wireNotification
// messages and dispatches them to a Handler, ack/nak/term-ing based on the
// handler's result — ported from GlobalAuditConsumer.Start/processMessage.
type Consumer struct {
	client  *Client
	stream  string
	subject string
	durable string
	handler Handler
}

// NewConsumer builds a Consumer bound to stream, pull-subscribing to
// subject under the named durable consumer group.
func NewConsumer(client *Client, stream, subject, durable string, handler Handler) *Consumer {
	return &Consumer{client: client, stream: stream, subject: subject, durable: durable, handler: handler}
}

// Start creates the durable pull subscription and launches the fetch loop
// in a background goroutine, returning immediately. The loop exits once ctx
// is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.client.JS.PullSubscribe(c.subject, c.durable, nats.BindStream(c.stream))
	if err != nil {
		return fmt.Errorf("natsbus: pull subscribe: %w", err)
	}

	c.client.Log.Info("natsbus consumer started",
		zap.String("stream", c.stream),
		zap.String("subject", c.subject),
		zap.String("durable", c.durable),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msgs, err := sub.Fetch(20, nats.Context(ctx))
				if err != nil {
					continue
				}
				for _, msg := range msgs {
					c.processMessage(ctx, msg)
				}
			}
		}
	}()
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg *nats.Msg) {
	n, err := decodeWireNotification(msg.Data)
	if err != nil {
		c.client.Log.Warn("terminating unparseable notification", zap.String("subject", msg.Subject), zap.Error(err))
		msg.Term()
		return
	}

	if err := c.handler(ctx, n); err != nil {
		var perm *PermanentError
		if errors.As(err, &perm) {
			c.client.Log.Warn("terminating poison-pill notification", zap.String("subject", msg.Subject), zap.Error(err))
			msg.Term()
			return
		}
		c.client.Log.Error("nak notification (transient error)", zap.String("subject", msg.Subject), zap.Error(err))
		msg.Nak()
		return
	}
	msg.Ack()
}
