package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel approval clients subscribe to.
const DefaultChannel = "zkkeeper:pending"

// Publisher is the subset of redis.UniversalClient used here.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes notifications as JSON on a pub/sub channel.
type Redis struct {
	client  Publisher
	channel string
	backoff time.Duration
}

// NewRedis creates a Redis notifier. An empty channel means DefaultChannel.
func NewRedis(client Publisher, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel, backoff: 100 * time.Millisecond}
}

// NewRedisClient opens a go-redis client for addr.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (r *Redis) Notify(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.retry(ctx, func() (int64, error) {
		return r.client.Publish(ctx, r.channel, payload).Result()
	})
	return err
}

// retry repeats a publish with exponential backoff so a restarting Redis
// does not drop notifications.
func (r *Redis) retry(ctx context.Context, op func() (int64, error)) (int64, error) {
	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(r.backoff * time.Duration(1<<uint(attempt-1))):
			}
		}
		n, err := op()
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("redis publish failed after %d retries: %w", maxRetries, lastErr)
}
