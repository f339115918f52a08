package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ales-api/internal/database"
	"github.com/ales-api/internal/models"
	json "github.com/goccy/go-json"
)

const publishColumns = `id, idempotency_key, state, draft, content_hash, tx_hash, block_number,
	attempts, error_kind, error_message, created_at, updated_at, confirmed_at`

// publishRepo is the concrete implementation of PublishRepository
type publishRepo struct {
	db *database.DB
}

// NewPublishRepo creates a new publish job repository
func NewPublishRepo(db *database.DB) PublishRepository {
	return &publishRepo{db: db}
}

// Create inserts a new publish job
func (r *publishRepo) Create(ctx context.Context, job *models.PublishJob) error {
	draft, err := json.Marshal(job.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	job.DraftJSON = draft

	query := `
		INSERT INTO publish_jobs (id, idempotency_key, state, draft, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID, nullString(job.IdempotencyKey), job.State, draft,
		job.Attempts, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// Update persists state, outcome and the (possibly cleared) draft
func (r *publishRepo) Update(ctx context.Context, job *models.PublishJob) error {
	draft, err := json.Marshal(job.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	job.DraftJSON = draft

	query := `
		UPDATE publish_jobs SET
			state = $1, draft = $2, content_hash = $3, tx_hash = $4, block_number = $5,
			attempts = $6, error_kind = $7, error_message = $8, updated_at = $9, confirmed_at = $10
		WHERE id = $11
	`
	_, err = r.db.ExecContext(ctx, query,
		job.State, draft, nullString(job.ContentHash), nullString(job.TxHash), int64(job.BlockNumber),
		job.Attempts, nullString(job.ErrorKind), nullString(job.ErrorMessage), time.Now(),
		job.ConfirmedAt, job.ID,
	)
	return err
}

// GetByID retrieves a publish job by ID
func (r *publishRepo) GetByID(ctx context.Context, id string) (*models.PublishJob, error) {
	query := `SELECT ` + publishColumns + ` FROM publish_jobs WHERE id = $1`
	return scanPublishJob(r.db.QueryRowContext(ctx, query, id))
}

// GetByIdempotencyKey retrieves a publish job by idempotency key
func (r *publishRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.PublishJob, error) {
	query := `SELECT ` + publishColumns + ` FROM publish_jobs WHERE idempotency_key = $1`
	return scanPublishJob(r.db.QueryRowContext(ctx, query, key))
}

// CountByState returns the number of jobs in each state
func (r *publishRepo) CountByState(ctx context.Context) (map[models.PublishState]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM publish_jobs GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PublishState]int)
	for rows.Next() {
		var state models.PublishState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

func scanPublishJob(row *sql.Row) (*models.PublishJob, error) {
	var job models.PublishJob
	var idempotencyKey, contentHash, txHash, errorKind, errorMessage sql.NullString
	var blockNumber int64
	var confirmedAt sql.NullTime

	err := row.Scan(
		&job.ID, &idempotencyKey, &job.State, &job.DraftJSON, &contentHash, &txHash, &blockNumber,
		&job.Attempts, &errorKind, &errorMessage, &job.CreatedAt, &job.UpdatedAt, &confirmedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(job.DraftJSON) > 0 {
		if err := json.Unmarshal(job.DraftJSON, &job.Draft); err != nil {
			return nil, fmt.Errorf("failed to decode draft of job %s: %w", job.ID, err)
		}
	}
	job.IdempotencyKey = idempotencyKey.String
	job.ContentHash = contentHash.String
	job.TxHash = txHash.String
	job.BlockNumber = uint64(blockNumber)
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	if confirmedAt.Valid {
		job.ConfirmedAt = &confirmedAt.Time
	}

	return &job, nil
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
