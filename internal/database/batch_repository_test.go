//nolint:testpackage // Testing internal repository requires same package access
package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func batchColumns() []string {
	return []string{
		"id", "provider_id", "max_item_count", "max_duration_ms",
		"status", "started_at", "completed_at", "processed_count",
		"skipped_count", "failed_count", "processed_urls", "failed_urls",
		"created_at", "updated_at",
	}
}

func TestBatchRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)
	ctx := context.Background()

	startedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO batches").
		WithArgs(
			"batch-1",
			"tasty",
			50,
			int64(1800000),
			domain.BatchStatusInProgress,
			startedAt,
			sqlmock.AnyArg(), // processed_urls JSONB
			sqlmock.AnyArg(), // failed_urls JSONB
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(startedAt, startedAt))

	batch := &domain.Batch{
		ID:            "batch-1",
		ProviderID:    "tasty",
		MaxItemCount:  50,
		MaxDurationMs: 1800000,
		Status:        domain.BatchStatusInProgress,
		StartedAt:     startedAt,
	}

	if err := repo.Create(ctx, batch); err != nil {
		t.Errorf("Create() error = %v", err)
	}
	if !batch.CreatedAt.Equal(startedAt) {
		t.Errorf("CreatedAt = %v, want scanned from RETURNING", batch.CreatedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBatchRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)
	ctx := context.Background()

	completedAt := time.Date(2026, 3, 1, 8, 25, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE batches").
		WithArgs(
			domain.BatchStatusCompleted,
			&completedAt,
			42,
			7,
			1,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"batch-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	batch := &domain.Batch{
		ID:             "batch-1",
		Status:         domain.BatchStatusCompleted,
		CompletedAt:    &completedAt,
		ProcessedCount: 42,
		SkippedCount:   7,
		FailedCount:    1,
	}

	if err := repo.Save(ctx, batch); err != nil {
		t.Errorf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBatchRepository_SaveMissingBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectExec("UPDATE batches").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &domain.Batch{ID: "ghost"})
	if !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("Save() error = %v, want ErrBatchNotFound", err)
	}
}

func TestBatchRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(batchColumns()).AddRow(
		"batch-1", "tasty", 50, int64(1800000),
		"in_progress", now, nil, 3,
		1, 0, []byte(`["https://tasty.test/r/one"]`), []byte(`[]`),
		now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM batches WHERE id").
		WithArgs("batch-1").
		WillReturnRows(rows)

	batch, err := repo.GetByID(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if batch.ProviderID != "tasty" || batch.ProcessedCount != 3 {
		t.Errorf("got %q with %d processed, want tasty with 3", batch.ProviderID, batch.ProcessedCount)
	}
	if len(batch.ProcessedURLs) != 1 {
		t.Errorf("processed urls = %v, want 1 entry", batch.ProcessedURLs)
	}
}

func TestBatchRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM batches WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(batchColumns()))

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("GetByID() error = %v, want ErrBatchNotFound", err)
	}
}

func TestBatchRepository_GetActiveForProviderNone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM batches").
		WithArgs("tasty", domain.BatchStatusPending, domain.BatchStatusInProgress).
		WillReturnRows(sqlmock.NewRows(batchColumns()))

	batch, err := repo.GetActiveForProvider(context.Background(), "tasty")
	if err != nil {
		t.Fatalf("GetActiveForProvider() error = %v", err)
	}
	if batch != nil {
		t.Errorf("got %+v, want nil when no batch is active", batch)
	}
}
