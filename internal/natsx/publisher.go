// Package natsx publishes outbound replies and order events to NATS subjects.
package natsx

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"github.com/nats-io/nats.go"
	"log/slog"
	"time"
)

const (
	connectAttempts = 3
	publishAttempts = 3
)

type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// Connect dials NATS with a few retries and logs disconnects/reconnects.
func Connect(ctx context.Context, url, name string, log *slog.Logger) (*nats.Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	var err error
	for i := 0; i < connectAttempts; i++ {
		var nc *nats.Conn
		nc, err = nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			log.Info("connected to nats", "url", url)
			return nc, nil
		}
		log.Warn("nats connect failed", "attempt", i+1, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect nats: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect nats after retries: %w", err)
}

// Publisher pushes JSON documents to a subject, retrying failed publishes.
type Publisher struct {
	Conn    conn
	Subject string
	Retry   time.Duration // jeda antar percobaan, default 1s
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	retry := p.Retry
	if retry <= 0 {
		retry = time.Second
	}

	for i := 0; i < publishAttempts; i++ {
		if err = p.Conn.Publish(subject, data); err == nil {
			if err = p.Conn.FlushTimeout(2 * time.Second); err == nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
	return fmt.Errorf("publish %s after retries: %w", subject, err)
}

// ReplySink delivers reply instructions to the configured subject.
type ReplySink struct {
	*Publisher
}

func (s ReplySink) Send(ctx context.Context, r chat.Reply) error {
	return s.publish(ctx, s.Subject, r)
}

// OrderEvents mirrors order lifecycle envelopes to <Subject>.<event type>.
type OrderEvents struct {
	*Publisher
}

func (o OrderEvents) PublishOrderEvent(ctx context.Context, env orders.Envelope) error {
	return o.publish(ctx, o.Subject+"."+env.EventType, env)
}
