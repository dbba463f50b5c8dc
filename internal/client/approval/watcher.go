package approval

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/notify"
	"github.com/redis/go-redis/v9"
)

// Lister lists pending requests.
type Lister interface {
	List(ctx context.Context, filter models.PendingRequestFilter) ([]models.PendingRequestSummary, error)
}

// Watcher reports each pending request once, the first time it is seen.
type Watcher struct {
	lister Lister

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewWatcher returns a watcher over lister.
func NewWatcher(lister Lister) *Watcher {
	return &Watcher{lister: lister, seen: make(map[string]struct{})}
}

// Poll returns requests that were not reported before. Requests that left
// the pending list are forgotten.
func (w *Watcher) Poll(ctx context.Context) ([]models.PendingRequestSummary, error) {
	list, err := w.lister.List(ctx, models.PendingRequestFilter{Status: models.StatusPending})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]struct{}, len(list))
	var fresh []models.PendingRequestSummary
	for _, r := range list {
		current[r.ID] = struct{}{}
		if _, ok := w.seen[r.ID]; !ok {
			fresh = append(fresh, r)
		}
	}
	w.seen = current
	return fresh, nil
}

// Run polls every interval until ctx is done, passing new requests to fn
// and poll failures to onErr.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, fn func(models.PendingRequestSummary), onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fresh, err := w.Poll(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			if onErr != nil {
				onErr(err)
			}
		case err == nil:
			for _, r := range fresh {
				fn(r)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Subscription is the part of *redis.PubSub the notification listener uses.
type Subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// Subscribe opens a pub/sub subscription on channel.
func Subscribe(ctx context.Context, addr, channel string) Subscription {
	rdb := notify.NewRedisClient(addr)
	return &ownedSubscription{PubSub: rdb.Subscribe(ctx, channel), client: rdb}
}

type ownedSubscription struct {
	*redis.PubSub
	client *redis.Client
}

func (s *ownedSubscription) Close() error {
	err := s.PubSub.Close()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// Listen passes every notification published on sub to fn until ctx is
// done or the subscription closes. Malformed messages are skipped.
func Listen(ctx context.Context, sub Subscription, fn func(models.Notification)) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			fn(n)
		}
	}
}
