package redis

import (
	"context"

	"github.com/grad-hub/grad-record-hub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS CLIENT ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// BusClient adapts the Cache's Redis connection to messaging.RedisClient so
// the distributed event bus can share the same connection pool.
type BusClient struct {
	cache *Cache
}

// NewBusClient creates a new BusClient.
func NewBusClient(cache *Cache) *BusClient {
	return &BusClient{cache: cache}
}

// Publish publishes a raw message to a channel.
func (c *BusClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.cache.Client().Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to channels and streams incoming messages. The
// returned channel closes when the context is cancelled.
func (c *BusClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := c.cache.Client().Subscribe(ctx, channels...)

	// Force the subscription to be established before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- messaging.RedisMessage{
					Channel: msg.Channel,
					Payload: msg.Payload,
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying connection.
func (c *BusClient) Close() error {
	return c.cache.Close()
}
