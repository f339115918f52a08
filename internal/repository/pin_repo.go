package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ales-api/internal/database"
	"github.com/ales-api/internal/models"
	"github.com/lib/pq"
)

// pinRepo is the concrete implementation of PinRepository
type pinRepo struct {
	db *database.DB
}

// NewPinRepo creates a new pin ledger repository
func NewPinRepo(db *database.DB) PinRepository {
	return &pinRepo{db: db}
}

// Record inserts a pin as pending. Pinning identical bytes yields the same
// CID, so an existing row is reset to pending unless it is referenced.
func (r *pinRepo) Record(ctx context.Context, pin *models.PinnedContent) error {
	query := `
		INSERT INTO pinned_contents (cid, kind, job_id, status, size, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $5)
		ON CONFLICT (cid) DO UPDATE SET
			status = 'pending',
			job_id = COALESCE(EXCLUDED.job_id, pinned_contents.job_id),
			updated_at = EXCLUDED.updated_at
		WHERE pinned_contents.status <> 'referenced'
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query, pin.CID, pin.Kind, nullString(pin.JobID), pin.Size, now)
	if err != nil {
		return err
	}
	pin.Status = models.PinStatusPending
	pin.CreatedAt = now
	pin.UpdatedAt = now
	return nil
}

// GetByCID retrieves a ledger entry
func (r *pinRepo) GetByCID(ctx context.Context, cid string) (*models.PinnedContent, error) {
	query := `SELECT cid, kind, job_id, status, size, created_at, updated_at FROM pinned_contents WHERE cid = $1`

	var pin models.PinnedContent
	var jobID sql.NullString
	err := r.db.QueryRowContext(ctx, query, cid).Scan(
		&pin.CID, &pin.Kind, &jobID, &pin.Status, &pin.Size, &pin.CreatedAt, &pin.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pin.JobID = jobID.String
	return &pin, nil
}

// MarkReferenced links the given CIDs to a confirmed job
func (r *pinRepo) MarkReferenced(ctx context.Context, jobID string, cids []string) (int64, error) {
	if len(cids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE pinned_contents SET status = 'referenced', job_id = $1, updated_at = $2
		WHERE cid = ANY($3) AND status IN ('pending', 'orphaned')
	`
	result, err := r.db.ExecContext(ctx, query, jobID, time.Now(), pq.Array(cids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ReleaseReferences returns CIDs a job referenced to pending, for a
// transaction that turned out never to land
func (r *pinRepo) ReleaseReferences(ctx context.Context, jobID string, cids []string) (int64, error) {
	if len(cids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE pinned_contents SET status = 'pending', updated_at = $1
		WHERE cid = ANY($2) AND job_id = $3 AND status = 'referenced'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), pq.Array(cids), jobID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkOrphaned flags a pending pin whose publish failed
func (r *pinRepo) MarkOrphaned(ctx context.Context, cid string) error {
	query := `UPDATE pinned_contents SET status = 'orphaned', updated_at = $1 WHERE cid = $2 AND status = 'pending'`
	_, err := r.db.ExecContext(ctx, query, time.Now(), cid)
	return err
}

// PromoteStalePending orphans pins that stayed pending since before olderThan
func (r *pinRepo) PromoteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `UPDATE pinned_contents SET status = 'orphaned', updated_at = $1 WHERE status = 'pending' AND updated_at < $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListOrphaned returns orphans last touched before olderThan, oldest first
func (r *pinRepo) ListOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]*models.PinnedContent, error) {
	query := `
		SELECT cid, kind, job_id, status, size, created_at, updated_at
		FROM pinned_contents
		WHERE status = 'orphaned' AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pins []*models.PinnedContent
	for rows.Next() {
		var pin models.PinnedContent
		var jobID sql.NullString
		if err := rows.Scan(&pin.CID, &pin.Kind, &jobID, &pin.Status, &pin.Size, &pin.CreatedAt, &pin.UpdatedAt); err != nil {
			return nil, err
		}
		pin.JobID = jobID.String
		pins = append(pins, &pin)
	}
	return pins, rows.Err()
}

// ClaimForUnpin atomically moves an orphan to unpinning
func (r *pinRepo) ClaimForUnpin(ctx context.Context, cid string) (bool, error) {
	query := `UPDATE pinned_contents SET status = 'unpinning', updated_at = $1 WHERE cid = $2 AND status = 'orphaned'`
	result, err := r.db.ExecContext(ctx, query, time.Now(), cid)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// MarkUnpinned completes a claim
func (r *pinRepo) MarkUnpinned(ctx context.Context, cid string) error {
	query := `UPDATE pinned_contents SET status = 'unpinned', updated_at = $1 WHERE cid = $2 AND status = 'unpinning'`
	_, err := r.db.ExecContext(ctx, query, time.Now(), cid)
	return err
}

// ReleaseClaim returns a claimed pin to orphaned after a failed unpin
func (r *pinRepo) ReleaseClaim(ctx context.Context, cid string) error {
	query := `UPDATE pinned_contents SET status = 'orphaned', updated_at = $1 WHERE cid = $2 AND status = 'unpinning'`
	_, err := r.db.ExecContext(ctx, query, time.Now(), cid)
	return err
}

// CountByStatus returns the number of pins in each status
func (r *pinRepo) CountByStatus(ctx context.Context) (map[models.PinStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM pinned_contents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PinStatus]int)
	for rows.Next() {
		var status models.PinStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
