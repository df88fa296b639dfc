package redisx

import (
	"context"
	"github.com/redis/go-redis/v9"
	"time"
)

// Dedup menandai event ID yang sudah diproses dengan SETNX.
type Dedup struct {
	Redis   redis.Cmdable
	Service string
	TTL     time.Duration
}

// Seen returns true when eventID was marked before; otherwise it marks it.
func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	ok, err := d.Redis.SetNX(ctx, dedupKey(d.Service, eventID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
