// Package notify delivers pending-request notifications to approval
// surfaces.
package notify

import (
	"context"
	"errors"

	"github.com/atinyakov/zkkeeper/internal/models"
	"go.uber.org/zap"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Log writes notifications to a zap logger.
type Log struct {
	log *zap.Logger
}

// NewLog creates a logging notifier.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, n models.Notification) error {
	l.log.Info("pending request notification",
		zap.String("event", string(n.Event)),
		zap.String("id", n.Request.ID),
		zap.String("type", string(n.Request.Type)),
		zap.String("origin", n.Request.Origin),
		zap.String("status", string(n.Request.Status)))
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errList []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
