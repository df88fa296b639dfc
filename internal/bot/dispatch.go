package bot

import (
	"context"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"log/slog"
)

// Deduper reports whether an inbound event ID was already processed and
// marks it as seen otherwise.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Dispatcher sits between the transports and the Engine: it validates,
// drops redelivered events and hands replies to the sink.
type Dispatcher struct {
	Engine *Engine
	Sink   chat.Sink
	Dedup  Deduper // optional
	Log    *slog.Logger
}

// Process validates and handles ev, returning the replies instead of sending them.
func (d *Dispatcher) Process(ctx context.Context, ev chat.Event) ([]chat.Reply, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if d.Dedup != nil && ev.ID != "" {
		seen, err := d.Dedup.Seen(ctx, ev.ID)
		switch {
		case err != nil:
			// redis bermasalah: lebih baik proses ganda daripada pesan hilang
			d.log().Warn("dedup check failed", "event_id", ev.ID, "err", err)
		case seen:
			d.log().Info("duplicate event skipped", "event_id", ev.ID)
			return nil, nil
		}
	}
	return d.Engine.Handle(ctx, ev), nil
}

// Dispatch processes ev and delivers every reply through the sink. Send
// failures are logged per reply and never abort the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, ev chat.Event) error {
	replies, err := d.Process(ctx, ev)
	if err != nil {
		return err
	}
	for _, r := range replies {
		if err := d.Sink.Send(ctx, r); err != nil {
			d.log().Warn("send reply", "chat_id", r.ChatID, "err", err)
		}
	}
	return nil
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}
