package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/jmoiron/sqlx"
)

func setupHistoryMock(t *testing.T) (*PostgresHistoryRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresHistoryRepository(sqlx.NewDb(db, "postgres"))
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestInsertOperation(t *testing.T) {
	repo, mock, cleanup := setupHistoryMock(t)
	defer cleanup()

	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	entry := models.OperationLogEntry{
		ID:        "op-1",
		Operation: models.OperationJoinGroup,
		Identity:  "42",
		Origin:    "https://dapp.example",
		Outcome:   models.OutcomeSuccess,
		CreatedAt: at,
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO operations`)).
		WithArgs("op-1", "JOIN_GROUP", "42", "https://dapp.example", "success", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.InsertOperation(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListOperations(t *testing.T) {
	repo, mock, cleanup := setupHistoryMock(t)
	defer cleanup()

	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "operation", "identity", "origin", "outcome", "created_at"}).
		AddRow("op-1", "CREATE_IDENTITY", "1", "https://a.example", "success", at).
		AddRow("op-2", "REQUEST_REJECTED", "", "https://b.example", "rejected", at.Add(time.Second))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM operations`)).WillReturnRows(rows)

	got, err := repo.ListOperations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries; want 2", len(got))
	}
	if got[0].Operation != models.OperationCreateIdentity || got[1].Outcome != models.OutcomeRejected {
		t.Errorf("entries = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestClearOperations(t *testing.T) {
	repo, mock, cleanup := setupHistoryMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM operations`)).WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.ClearOperations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSettings(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    bool
		wantErr bool
	}{
		{
			name: "default enabled",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_enabled FROM history_settings`)).WillReturnError(sql.ErrNoRows)
			},
			want: true,
		},
		{
			name: "stored disabled",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_enabled FROM history_settings`)).
					WillReturnRows(sqlmock.NewRows([]string{"is_enabled"}).AddRow(false))
			},
			want: false,
		},
		{
			name: "query error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_enabled FROM history_settings`)).WillReturnError(errors.New("boom"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupHistoryMock(t)
			defer cleanup()
			tt.setup(mock)

			got, err := repo.Settings(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v; wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.IsEnabled != tt.want {
				t.Errorf("IsEnabled = %v; want %v", got.IsEnabled, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestSaveSettings(t *testing.T) {
	repo, mock, cleanup := setupHistoryMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO history_settings`)).
		WithArgs(false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveSettings(context.Background(), models.HistorySettings{IsEnabled: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
