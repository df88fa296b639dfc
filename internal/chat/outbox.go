package chat

import (
	"context"
	"sync"
)

// Outbox collects replies for other chats (admin notice, owner updates)
// produced while one inbound event is handled, so they are delivered
// together with the direct reply.
type Outbox struct {
	mu      sync.Mutex
	replies []Reply
}

func (o *Outbox) Add(r Reply) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies = append(o.replies, r)
}

// Replies returns a copy in the order they were added.
func (o *Outbox) Replies() []Reply {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Reply(nil), o.replies...)
}

type outboxKey struct{}

func WithOutbox(ctx context.Context, o *Outbox) context.Context {
	return context.WithValue(ctx, outboxKey{}, o)
}

func OutboxFrom(ctx context.Context) (*Outbox, bool) {
	o, ok := ctx.Value(outboxKey{}).(*Outbox)
	return o, ok && o != nil
}
