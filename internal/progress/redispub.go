package progress

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/netcapd/netcapd/internal/log"
)

// RedisObserver publishes progress events to a Redis pub/sub channel for
// external dashboard consumers (SPEC_FULL §2), the same kind of collaborator
// spec.md §1 names as consuming the core's artifacts without being part of
// it. Publish errors are logged and otherwise swallowed — a dashboard outage
// must never affect the scheduler.
type RedisObserver struct {
	client  *redis.Client
	channel string
}

// NewRedisObserver builds an Observer that publishes to addr/channel. The
// client is lazily connected by go-redis on first use.
func NewRedisObserver(addr, channel string) *RedisObserver {
	return &RedisObserver{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Notify implements Observer.
func (o *RedisObserver) Notify(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Warn("progress redis marshal failed", "error", err)
		return
	}
	if err := o.client.Publish(context.Background(), o.channel, payload).Err(); err != nil {
		log.Warn("progress redis publish failed", "error", err, "channel", o.channel)
	}
}

// Close releases the underlying Redis client.
func (o *RedisObserver) Close() error {
	return o.client.Close()
}
