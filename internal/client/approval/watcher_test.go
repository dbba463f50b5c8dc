package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listerFunc func(ctx context.Context, filter models.PendingRequestFilter) ([]models.PendingRequestSummary, error)

func (f listerFunc) List(ctx context.Context, filter models.PendingRequestFilter) ([]models.PendingRequestSummary, error) {
	return f(ctx, filter)
}

func ids(list []models.PendingRequestSummary) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

func TestWatcher_Poll(t *testing.T) {
	rounds := [][]string{{"a", "b"}, {"a", "b", "c"}, {"c"}, {"a", "c"}}
	round := 0
	w := NewWatcher(listerFunc(func(_ context.Context, f models.PendingRequestFilter) ([]models.PendingRequestSummary, error) {
		assert.Equal(t, models.StatusPending, f.Status)
		var out []models.PendingRequestSummary
		for _, id := range rounds[round] {
			out = append(out, models.PendingRequestSummary{ID: id})
		}
		round++
		return out, nil
	}))

	want := [][]string{{"a", "b"}, {"c"}, {}, {"a"}}
	for i := range rounds {
		fresh, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want[i], ids(fresh), "round %d", i)
	}
}

func TestWatcher_RunReportsErrorsAndStops(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	w := NewWatcher(listerFunc(func(context.Context, models.PendingRequestFilter) ([]models.PendingRequestSummary, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("unreachable")
		}
		return []models.PendingRequestSummary{{ID: "x"}}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 10)
	errc := make(chan error, 10)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 5*time.Millisecond, func(r models.PendingRequestSummary) { got <- r.ID }, func(err error) { errc <- err })
		close(done)
	}()

	select {
	case err := <-errc:
		assert.EqualError(t, err, "unreachable")
	case <-time.After(time.Second):
		t.Fatal("error not reported")
	}
	select {
	case id := <-got:
		assert.Equal(t, "x", id)
	case <-time.After(time.Second):
		t.Fatal("request not reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Empty(t, got, "a request is reported once")
}

type fakeSubscription struct {
	ch     chan *redis.Message
	closed bool
}

func (f *fakeSubscription) Channel(...redis.ChannelOption) <-chan *redis.Message { return f.ch }

func (f *fakeSubscription) Close() error {
	f.closed = true
	return nil
}

func TestListen(t *testing.T) {
	sub := &fakeSubscription{ch: make(chan *redis.Message, 3)}
	sub.ch <- &redis.Message{Channel: "zkkeeper:pending", Payload: `{"event":"request.created","request":{"id":"r1","type":"JOIN_GROUP","urlOrigin":"https://a","status":"PENDING","createdAt":"2026-01-01T00:00:00Z"}}`}
	sub.ch <- &redis.Message{Channel: "zkkeeper:pending", Payload: `not json`}
	sub.ch <- &redis.Message{Channel: "zkkeeper:pending", Payload: `{"event":"request.settled","request":{"id":"r1","status":"APPROVED","settled":true}}`}
	close(sub.ch)

	var got []models.Notification
	Listen(context.Background(), sub, func(n models.Notification) { got = append(got, n) })

	require.Len(t, got, 2)
	assert.Equal(t, models.EventRequestCreated, got[0].Event)
	assert.Equal(t, "https://a", got[0].Request.Origin)
	assert.Equal(t, models.EventRequestSettled, got[1].Event)
	assert.True(t, got[1].Request.Settled)
	assert.True(t, sub.closed)
}

func TestListenStopsOnCancel(t *testing.T) {
	sub := &fakeSubscription{ch: make(chan *redis.Message)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Listen(ctx, sub, func(models.Notification) { t.Error("unexpected notification") })
	assert.True(t, sub.closed)
}
