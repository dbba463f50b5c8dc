package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type fakePublisher struct {
	failures int
	channel  string
	messages [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.failures > 0 {
		f.failures--
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	f.channel = channel
	f.messages = append(f.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

type funcNotifier func(ctx context.Context, n models.Notification) error

func (f funcNotifier) Notify(ctx context.Context, n models.Notification) error { return f(ctx, n) }

var sample = models.Notification{
	Event: models.EventRequestCreated,
	Request: models.PendingRequestSummary{
		ID:     "req-1",
		Type:   models.RequestJoinGroup,
		Origin: "https://dapp.example",
		Status: models.StatusPending,
	},
}

func TestRedisPublishesJSON(t *testing.T) {
	pub := &fakePublisher{failures: 1}
	r := NewRedis(pub, "")
	r.backoff = 0

	require.NoError(t, r.Notify(context.Background(), sample))
	assert.Equal(t, DefaultChannel, pub.channel)
	require.Len(t, pub.messages, 1)

	var got models.Notification
	require.NoError(t, json.Unmarshal(pub.messages[0], &got))
	assert.Equal(t, sample, got)
}

func TestRedisGivesUpAfterRetries(t *testing.T) {
	pub := &fakePublisher{failures: 5}
	r := NewRedis(pub, "custom")
	r.backoff = 0

	err := r.Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Empty(t, pub.messages)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zap.InfoLevel)

	require.NoError(t, NewLog(zap.New(core)).Notify(context.Background(), sample))
	assert.Contains(t, buf.String(), `"id":"req-1"`)
	assert.Contains(t, buf.String(), `"origin":"https://dapp.example"`)
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls int
	ok := funcNotifier(func(context.Context, models.Notification) error { calls++; return nil })
	bad := funcNotifier(func(context.Context, models.Notification) error { calls++; return errors.New("down") })

	err := Multi{ok, bad, ok}.Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.NoError(t, Multi{ok}.Notify(context.Background(), sample))
}
