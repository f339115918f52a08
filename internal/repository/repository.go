package repository

import (
	"context"
	"time"

	"github.com/ales-api/internal/database"
	"github.com/ales-api/internal/models"
)

// PublishRepository defines the interface for publish job data operations
type PublishRepository interface {
	Create(ctx context.Context, job *models.PublishJob) error
	Update(ctx context.Context, job *models.PublishJob) error
	GetByID(ctx context.Context, id string) (*models.PublishJob, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.PublishJob, error)
	CountByState(ctx context.Context) (map[models.PublishState]int, error)
}

// PinRepository defines the interface for the pinned content ledger
type PinRepository interface {
	Record(ctx context.Context, pin *models.PinnedContent) error
	GetByCID(ctx context.Context, cid string) (*models.PinnedContent, error)
	MarkReferenced(ctx context.Context, jobID string, cids []string) (int64, error)
	ReleaseReferences(ctx context.Context, jobID string, cids []string) (int64, error)
	MarkOrphaned(ctx context.Context, cid string) error
	PromoteStalePending(ctx context.Context, olderThan time.Time) (int64, error)
	ListOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]*models.PinnedContent, error)
	ClaimForUnpin(ctx context.Context, cid string) (bool, error)
	MarkUnpinned(ctx context.Context, cid string) error
	ReleaseClaim(ctx context.Context, cid string) error
	CountByStatus(ctx context.Context) (map[models.PinStatus]int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Publish PublishRepository
	Pin     PinRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Publish: NewPublishRepo(db),
		Pin:     NewPinRepo(db),
	}
}
