package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PruneOperations deletes operation log entries created before cutoff and
// returns how many were removed.
func PruneOperations(ctx context.Context, db *sqlx.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM operations WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune operations: %w", err)
	}
	return res.RowsAffected()
}

// StartHistoryCleaner prunes entries older than retention every interval
// until ctx is done. A zero retention keeps the log append-only and starts
// nothing.
func StartHistoryCleaner(ctx context.Context, db *sqlx.DB, interval, retention time.Duration, log *zap.Logger) {
	if retention <= 0 {
		log.Info("operation log retention disabled")
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := PruneOperations(ctx, db, now.Add(-retention))
				switch {
				case err != nil:
					log.Error("failed to clean operation log", zap.Error(err))
				case n > 0:
					log.Info("cleaned operation log", zap.Int64("removed", n), zap.Duration("retention", retention))
				}
			}
		}
	}()
}
