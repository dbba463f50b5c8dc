package broker

import (
	"context"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"go.uber.org/zap"
)

// StartJanitor prunes settled requests older than the settled retention
// every interval until ctx is done.
func (b *Broker) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := b.Prune(); n > 0 {
					b.log.Info("pruned settled requests", zap.Int("removed", n))
				}
			}
		}
	}()
}

// Prune drops settled requests whose retention has passed and returns how
// many were removed. Their ids then report errs.ErrRequestNotFound.
func (b *Broker) Prune() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.retention)
	removed := 0
	for id, rec := range b.requests {
		if !rec.summary.Settled || rec.settledAt.After(cutoff) {
			continue
		}
		// Keep abandoned or timed-out requests until a decision arrives or
		// they age out twice over, so the late decision can still be logged.
		if rec.summary.Status == models.StatusPending && rec.settledAt.After(cutoff.Add(-b.retention)) {
			continue
		}
		delete(b.requests, id)
		removed++
	}
	return removed
}
