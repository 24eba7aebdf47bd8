package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "expensync:broadcast"

// RedisAdapter relays messages between processes over Redis pub/sub.
type RedisAdapter struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisAdapter creates an adapter on the given pub/sub channel.
func NewRedisAdapter(client *redis.Client, channel string, logger *slog.Logger) *RedisAdapter {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisAdapter{
		client:  client,
		channel: channel,
		logger:  logger.With("component", "broadcast_redis", "channel", channel),
	}
}

// Publish sends msg to every subscribed process, this one included.
func (a *RedisAdapter) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := a.client.Publish(ctx, a.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe joins the pub/sub channel and returns decoded messages. The
// stream closes when ctx is done or the adapter is closed.
func (a *RedisAdapter) Subscribe(ctx context.Context) (<-chan Message, error) {
	ps := a.client.Subscribe(ctx, a.channel)
	// Wait for the subscription confirmation so no publish after Start is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	a.mu.Lock()
	a.pubsub = ps
	a.mu.Unlock()

	out := make(chan Message, defaultBufferSize)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				a.logger.Warn("dropping malformed broadcast message", "error", err)
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close leaves the pub/sub channel.
func (a *RedisAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pubsub == nil {
		return nil
	}
	err := a.pubsub.Close()
	a.pubsub = nil
	return err
}
