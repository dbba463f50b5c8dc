package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartHistoryCleaner(t *testing.T) {
	tests := []struct {
		name    string
		expect  func(e *sqlmock.ExpectedExec)
		level   zapcore.Level
		message string
	}{
		{
			name:    "removes expired entries",
			expect:  func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 3)) },
			level:   zapcore.InfoLevel,
			message: "cleaned operation log",
		},
		{
			name:    "logs database errors",
			expect:  func(e *sqlmock.ExpectedExec) { e.WillReturnError(errors.New("db fail")) },
			level:   zapcore.ErrorLevel,
			message: "failed to clean operation log",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbMock, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to open sqlmock database: %v", err)
			}
			defer dbMock.Close()
			tt.expect(mock.ExpectExec("DELETE FROM operations").WithArgs(sqlmock.AnyArg()))

			core, logs := observer.New(zapcore.InfoLevel)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			StartHistoryCleaner(ctx, sqlx.NewDb(dbMock, "postgres"), 10*time.Millisecond, 30*24*time.Hour, zap.New(core))

			waitFor(t, func() bool { return logs.FilterMessage(tt.message).Len() > 0 })
			cancel()

			entry := logs.FilterMessage(tt.message).All()[0]
			if entry.Level != tt.level {
				t.Errorf("level = %v; want %v", entry.Level, tt.level)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestStartHistoryCleaner_StopsOnCancel(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	defer dbMock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	StartHistoryCleaner(ctx, sqlx.NewDb(dbMock, "postgres"), 100*time.Millisecond, time.Hour, zap.NewNop())
	cancel()

	time.Sleep(150 * time.Millisecond)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected sql calls: %v", err)
	}
}

func TestStartHistoryCleaner_ZeroRetentionKeepsLog(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	defer dbMock.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartHistoryCleaner(ctx, sqlx.NewDb(dbMock, "postgres"), 5*time.Millisecond, 0, zap.New(core))

	time.Sleep(50 * time.Millisecond)

	if logs.FilterMessage("operation log retention disabled").Len() != 1 {
		t.Error("expected the disabled retention to be logged")
	}
	if logs.FilterMessage("failed to clean operation log").Len() != 0 {
		t.Error("cleaner ran with zero retention")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected sql calls: %v", err)
	}
}

func TestPruneOperations(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	defer dbMock.Close()

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM operations WHERE created_at < $1`)).
		WithArgs(cutoff.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := PruneOperations(context.Background(), sqlx.NewDb(dbMock, "postgres"), cutoff)
	if err != nil {
		t.Fatalf("PruneOperations: %v", err)
	}
	if n != 7 {
		t.Errorf("removed = %d; want 7", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
