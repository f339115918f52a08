package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ales-api/internal/database"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/repository"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &database.DB{DB: db}, mock
}

func TestPublishRepo_CreateStoresDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPublishRepo(db)

	now := time.Now()
	job := &models.PublishJob{
		ID:        "job-1",
		State:     models.PublishStateEditing,
		Draft:     models.Draft{Title: "Hello", Content: "<p>body</p>"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO publish_jobs")).
		WithArgs("job-1", nil, models.PublishStateEditing, sqlmock.AnyArg(), 0, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(job.DraftJSON) == 0 {
		t.Error("Draft should be encoded on create")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPublishRepo_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPublishRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "idempotency_key", "state", "draft", "content_hash", "tx_hash", "block_number",
		"attempts", "error_kind", "error_message", "created_at", "updated_at", "confirmed_at",
	}).AddRow(
		"job-1", "key-1", "failed", []byte(`{"title":"Hello","content":"body","price":"0.1","is_free":false}`),
		"QmHash", nil, 0, 1, "transaction_rejected", "user denied", now, now, nil,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM publish_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job == nil {
		t.Fatal("Job should be found")
	}
	if job.State != models.PublishStateFailed {
		t.Errorf("Expected failed, got %s", job.State)
	}
	if job.Draft.Title != "Hello" || job.Draft.Price != "0.1" {
		t.Errorf("Draft not decoded: %+v", job.Draft)
	}
	if job.IdempotencyKey != "key-1" || job.ContentHash != "QmHash" || job.TxHash != "" {
		t.Errorf("Unexpected nullable fields: %+v", job)
	}
	if job.ConfirmedAt != nil {
		t.Error("ConfirmedAt should be nil")
	}
}

func TestPublishRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPublishRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM publish_jobs WHERE idempotency_key = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	job, err := repo.GetByIdempotencyKey(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByIdempotencyKey failed: %v", err)
	}
	if job != nil {
		t.Error("Should not find job with unknown key")
	}
}

func TestPinRepo_RecordKeepsReferenced(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPinRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE pinned_contents.status <> 'referenced'")).
		WithArgs("QmMedia", models.PinKindMedia, nil, int64(128), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pin := &models.PinnedContent{CID: "QmMedia", Kind: models.PinKindMedia, Size: 128}
	if err := repo.Record(context.Background(), pin); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if pin.Status != models.PinStatusPending {
		t.Errorf("Expected pending, got %s", pin.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPinRepo_MarkReferenced(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPinRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'referenced'")).
		WithArgs("job-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.MarkReferenced(context.Background(), "job-1", []string{"QmA", "QmB"})
	if err != nil {
		t.Fatalf("MarkReferenced failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows, got %d", n)
	}

	// No CIDs means no query
	if n, _ := repo.MarkReferenced(context.Background(), "job-1", nil); n != 0 {
		t.Errorf("Expected 0, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPinRepo_ReleaseReferences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPinRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'pending'")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.ReleaseReferences(context.Background(), "job-1", []string{"QmA"})
	if err != nil {
		t.Fatalf("ReleaseReferences failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 row, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPinRepo_ClaimForUnpin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPinRepo(db)

	claim := regexp.QuoteMeta("SET status = 'unpinning'")
	mock.ExpectExec(claim).WithArgs(sqlmock.AnyArg(), "QmOrphan").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claim).WithArgs(sqlmock.AnyArg(), "QmOrphan").WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimForUnpin(context.Background(), "QmOrphan")
	if err != nil {
		t.Fatalf("ClaimForUnpin failed: %v", err)
	}
	if !claimed {
		t.Error("First claim should succeed")
	}

	claimed, _ = repo.ClaimForUnpin(context.Background(), "QmOrphan")
	if claimed {
		t.Error("Second claim should not succeed")
	}
}

func TestPinRepo_ListOrphaned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPinRepo(db)

	now := time.Now()
	cutoff := now.Add(-10 * time.Minute)
	rows := sqlmock.NewRows([]string{"cid", "kind", "job_id", "status", "size", "created_at", "updated_at"}).
		AddRow("QmA", "article", "job-1", "orphaned", 10, now, now).
		AddRow("QmB", "media", nil, "orphaned", 20, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'orphaned' AND updated_at < $1")).
		WithArgs(cutoff, 50).
		WillReturnRows(rows)

	pins, err := repo.ListOrphaned(context.Background(), cutoff, 50)
	if err != nil {
		t.Fatalf("ListOrphaned failed: %v", err)
	}
	if len(pins) != 2 {
		t.Fatalf("Expected 2 pins, got %d", len(pins))
	}
	if pins[0].JobID != "job-1" || pins[1].JobID != "" {
		t.Errorf("Unexpected job ids: %q %q", pins[0].JobID, pins[1].JobID)
	}
	if pins[1].Kind != models.PinKindMedia {
		t.Errorf("Expected media, got %s", pins[1].Kind)
	}
}

func TestPinRepo_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPinRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pinned_contents GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("referenced", 4).
			AddRow("orphaned", 1))

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[models.PinStatusReferenced] != 4 || counts[models.PinStatusOrphaned] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}
