// Package events is the NATS-backed event bus shared by the matchmaking and session services.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
	"github.com/nats-io/nats.go"
)

const maxAttempts = 5

// Publisher emits a JSON payload on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Handler processes one raw message. Returned errors are logged, not redelivered.
type Handler func(ctx context.Context, data []byte) error

// Subscriber registers a handler on a topic.
type Subscriber interface {
	Subscribe(topic string, h Handler) error
}

// Bus publishes over core NATS and subscribes through a queue group so that
// each event is handled by one instance of a service.
type Bus struct {
	conn       *nats.Conn
	queueGroup string

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials NATS with bounded exponential backoff.
func Connect(ctx context.Context, url, name, queueGroup string) (*Bus, error) {
	var conn *nats.Conn
	op := func() error {
		var err error
		conn, err = nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(10),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("NATS disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("NATS reconnected", "url", c.ConnectedUrl())
			}),
			nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
				subject := ""
				if sub != nil {
					subject = sub.Subject
				}
				logger.Error("NATS async error", "subject", subject, "error", err)
			}),
		)
		if err != nil {
			logger.Warn("NATS connect attempt failed", "url", url, "error", err)
		}
		return err
	}

	if err := backoff.Retry(op, retryPolicy(ctx)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to connect to NATS")
	}

	logger.Info("Connected to NATS", "url", conn.ConnectedUrl(), "name", name)
	return NewBus(conn, queueGroup), nil
}

func NewBus(conn *nats.Conn, queueGroup string) *Bus {
	return &Bus{conn: conn, queueGroup: queueGroup}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode event")
	}
	if err := b.conn.Publish(topic, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to publish event")
	}

	logger.Debug("Event published", "topic", topic, "bytes", len(data))
	return nil
}

// Subscribe attaches h to topic inside the bus queue group, retrying with backoff.
func (b *Bus) Subscribe(topic string, h Handler) error {
	return b.subscribe(topic, b.queueGroup, h)
}

// Group returns a Subscriber on the same connection that joins another queue
// group, so a second consumer in this process also sees every event.
func (b *Bus) Group(queueGroup string) Subscriber {
	return groupSubscriber{bus: b, queueGroup: queueGroup}
}

type groupSubscriber struct {
	bus        *Bus
	queueGroup string
}

func (g groupSubscriber) Subscribe(topic string, h Handler) error {
	return g.bus.subscribe(topic, g.queueGroup, h)
}

func (b *Bus) subscribe(topic, queueGroup string, h Handler) error {
	var sub *nats.Subscription
	op := func() error {
		var err error
		sub, err = b.conn.QueueSubscribe(topic, queueGroup, func(msg *nats.Msg) {
			if err := h(context.Background(), msg.Data); err != nil {
				logger.Error("Event handler failed", "topic", topic, "error", err)
			}
		})
		return err
	}

	if err := backoff.Retry(op, retryPolicy(context.Background())); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to subscribe to "+topic)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	logger.Info("Subscribed to topic", "topic", topic, "queue_group", queueGroup)
	return nil
}

// Flush waits until the server has processed everything sent so far.
func (b *Bus) Flush() error {
	return b.conn.Flush()
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts-1), ctx)
}

// Decode is a helper for handlers.
func Decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "malformed event payload")
	}
	return nil
}
