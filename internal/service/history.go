package service

import (
	"context"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryRepository defines the persistence operations of the operation log.
type HistoryRepository interface {
	// InsertOperation appends one entry.
	InsertOperation(ctx context.Context, entry models.OperationLogEntry) error
	// ListOperations returns entries in insertion order.
	ListOperations(ctx context.Context) ([]models.OperationLogEntry, error)
	// ClearOperations removes every entry.
	ClearOperations(ctx context.Context) error
	// Settings returns the stored settings, defaulting to enabled.
	Settings(ctx context.Context) (models.HistorySettings, error)
	// SaveSettings stores settings.
	SaveSettings(ctx context.Context, settings models.HistorySettings) error
}

// HistoryService owns the append-only operation log and its on/off setting.
// The log is consulted for auditing only.
type HistoryService struct {
	// repo performs the data-layer operations.
	repo HistoryRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewHistoryService constructs a HistoryService using the provided repository.
func NewHistoryService(repo HistoryRepository, log *zap.Logger) *HistoryService {
	return &HistoryService{repo: repo, log: log, now: time.Now}
}

// TrackOperation appends entry when history is enabled. Missing id and
// timestamp are filled in.
func (s *HistoryService) TrackOperation(ctx context.Context, entry models.OperationLogEntry) error {
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return err
	}
	if !settings.IsEnabled {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.repo.InsertOperation(ctx, entry)
}

// History returns the operation log together with the current settings.
func (s *HistoryService) History(ctx context.Context) (*HistoryView, error) {
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := s.repo.ListOperations(ctx)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []models.OperationLogEntry{}
	}
	return &HistoryView{Operations: ops, Settings: settings}, nil
}

// EnableHistory switches recording on or off. Existing entries are kept.
func (s *HistoryService) EnableHistory(ctx context.Context, enabled bool) error {
	if err := s.repo.SaveSettings(ctx, models.HistorySettings{IsEnabled: enabled}); err != nil {
		return err
	}
	s.log.Info("history setting changed", zap.Bool("enabled", enabled))
	return nil
}

// ClearHistory removes every entry.
func (s *HistoryService) ClearHistory(ctx context.Context) error {
	return s.repo.ClearOperations(ctx)
}

// HistoryView is the result of GET_HISTORY.
type HistoryView struct {
	Operations []models.OperationLogEntry `json:"operations"`
	Settings   models.HistorySettings     `json:"settings"`
}

// track is used by the identity and group services. Log failures never fail
// the operation they describe.
func track(ctx context.Context, t OperationTracker, log *zap.Logger, entry models.OperationLogEntry) {
	if t == nil {
		return
	}
	if err := t.TrackOperation(ctx, entry); err != nil {
		log.Warn("operation log write failed", zap.String("operation", string(entry.Operation)), zap.Error(err))
	}
}

// OperationTracker appends to the operation log.
type OperationTracker interface {
	TrackOperation(ctx context.Context, entry models.OperationLogEntry) error
}
