package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/repository"
	"github.com/ales-api/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// publishService is the concrete implementation of PublishService
type publishService struct {
	conn         ConnectionService
	store        ipfs.Store
	jobRepo      repository.PublishRepository
	pinRepo      repository.PinRepository
	validator    *validation.Validator
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewPublishService creates the publish flow service
func NewPublishService(
	conn ConnectionService,
	store ipfs.Store,
	jobRepo repository.PublishRepository,
	pinRepo repository.PinRepository,
	validator *validation.Validator,
	writeTimeout time.Duration,
	log zerolog.Logger,
) PublishService {
	return &publishService{
		conn:         conn,
		store:        store,
		jobRepo:      jobRepo,
		pinRepo:      pinRepo,
		validator:    validator,
		writeTimeout: writeTimeout,
		log:          log.With().Str("service", "publish").Logger(),
	}
}

// Submit validates the draft, records a job and runs it to confirmation or
// failure. A repeated idempotency key returns the existing job unchanged.
// The returned job is non-nil whenever it was recorded, even on error.
func (s *publishService) Submit(ctx context.Context, draft models.Draft, idempotencyKey string) (*models.PublishJob, error) {
	if errs := s.validator.ValidateDraft(&draft); len(errs) > 0 {
		return nil, &DraftError{Errors: errs}
	}

	if idempotencyKey != "" {
		existing, err := s.jobRepo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			s.log.Info().
				Str("job_id", existing.ID).
				Str("idempotency_key", idempotencyKey).
				Msg("Returning existing publish job for idempotency key")
			return existing, nil
		}
	}

	now := time.Now()
	job := &models.PublishJob{
		ID:             uuid.New().String(),
		IdempotencyKey: idempotencyKey,
		State:          models.PublishStateEditing,
		Draft:          validation.NormalizeDraft(draft),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create publish job: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Bool("is_free", job.Draft.IsFree).
		Str("price", job.Draft.Price).
		Int("media", len(job.Draft.Media)).
		Msg("Publish job created")

	return job, s.run(ctx, job)
}

// GetJob retrieves a publish job by ID
func (s *publishService) GetJob(ctx context.Context, id string) (*models.PublishJob, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("publish job %s: %w", id, models.ErrNotFound)
	}
	return job, nil
}

// Retry returns a failed job to editing with its draft and runs it again.
// A job whose transaction was broadcast but never observed is settled from
// its receipt first and only resubmitted once that transaction is known
// not to have landed.
func (s *publishService) Retry(ctx context.Context, id string) (*models.PublishJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.AwaitingReceipt() {
		settled, err := s.settle(ctx, job)
		if settled || err != nil {
			return job, err
		}
	}
	if err := job.Transition(models.PublishStateEditing); err != nil {
		return job, fmt.Errorf("job %s is %s: %w", job.ID, job.State, err)
	}
	job.ErrorKind = ""
	job.ErrorMessage = ""
	job.TxHash = ""
	job.ContentHash = ""

	s.log.Info().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("Retrying publish job")
	return job, s.run(ctx, job)
}

// UploadMedia pins an attachment and records it as pending until a
// publish references it.
func (s *publishService) UploadMedia(ctx context.Context, content models.Content) (*models.PinnedContent, error) {
	res, err := s.store.Put(ctx, content)
	if err != nil {
		return nil, err
	}

	pin := &models.PinnedContent{CID: res.CID, Kind: models.PinKindMedia, Size: res.Size}
	if err := s.pinRepo.Record(ctx, pin); err != nil {
		return nil, fmt.Errorf("failed to record media pin: %w", err)
	}

	// Identical bytes may already be referenced by a published article
	stored, err := s.pinRepo.GetByCID(ctx, res.CID)
	if err != nil {
		return nil, fmt.Errorf("failed to read media pin: %w", err)
	}
	if stored == nil {
		return pin, nil
	}
	return stored, nil
}

// Stats counts jobs by state and pins by status
func (s *publishService) Stats(ctx context.Context) (*models.Stats, error) {
	jobs, err := s.jobRepo.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	pins, err := s.pinRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Stats{PublishJobs: jobs, Pins: pins}, nil
}

// run drives job from editing to confirmed or failed. It outlives the
// request so a submitted transaction is always awaited and recorded.
func (s *publishService) run(ctx context.Context, job *models.PublishJob) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	job.Attempts++
	log := s.log.With().Str("job_id", job.ID).Int("attempt", job.Attempts).Logger()

	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	defer contract.Close()

	// Uploading
	if err := s.advance(ctx, job, models.PublishStateUploading); err != nil {
		return err
	}
	res, err := s.store.Put(ctx, models.Content{
		Name:        "ArticleContent",
		Filename:    "article.html",
		ContentType: "text/html",
		Data:        []byte(job.Draft.Content),
	})
	if err != nil {
		return s.fail(ctx, job, err)
	}
	job.ContentHash = res.CID
	if err := s.pinRepo.Record(ctx, &models.PinnedContent{
		CID:   res.CID,
		Kind:  models.PinKindArticle,
		JobID: job.ID,
		Size:  res.Size,
	}); err != nil {
		log.Error().Err(err).Str("cid", res.CID).Msg("Failed to record article pin")
	}
	log.Info().Str("cid", res.CID).Msg("Article content uploaded")

	// Submitting
	if err := s.advance(ctx, job, models.PublishStateSubmitting); err != nil {
		return err
	}
	receipt, err := contract.Publish(ctx, job.Draft.Title, job.ContentHash, job.Draft.Price, job.Draft.IsFree)
	switch {
	case err == nil:
		s.confirm(ctx, job, receipt)
		return nil
	case errors.Is(err, models.ErrTransactionPending):
		// The transaction may still land and point at this content
		s.reference(ctx, job)
	case errors.Is(err, models.ErrTransactionRejected), errors.Is(err, models.ErrTransactionReverted):
		s.orphan(ctx, job)
	}
	return s.fail(ctx, job, err)
}

// settle resolves a job whose transaction outcome was unknown. It reports
// true when the job reached a final answer: confirmed, or still pending.
// On false with a nil error the transaction is known not to have landed
// and the job may be resubmitted.
func (s *publishService) settle(ctx context.Context, job *models.PublishJob) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return false, err
	}
	defer contract.Close()

	receipt, err := contract.Receipt(ctx, job.TxHash)
	switch {
	case err == nil:
		s.confirm(ctx, job, receipt)
		return true, nil
	case errors.Is(err, models.ErrTransactionPending):
		job.ErrorMessage = err.Error()
		job.UpdatedAt = time.Now()
		if updErr := s.jobRepo.Update(ctx, job); updErr != nil {
			s.log.Error().Err(updErr).Str("job_id", job.ID).Msg("Failed to record pending publish job")
		}
		return true, err
	case errors.Is(err, models.ErrTransactionRejected), errors.Is(err, models.ErrTransactionReverted):
		s.log.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("tx_hash", job.TxHash).
			Msg("Publish transaction did not land, resubmitting")
		if _, relErr := s.pinRepo.ReleaseReferences(ctx, job.ID, s.refs(job)); relErr != nil {
			s.log.Error().Err(relErr).Str("job_id", job.ID).Msg("Failed to release pin references")
		}
		s.orphan(ctx, job)
		return false, nil
	}
	return false, err
}

// confirm records the receipt. Confirm clears the draft body and media
// list, so the references are taken first.
func (s *publishService) confirm(ctx context.Context, job *models.PublishJob, receipt *models.TxReceipt) {
	refs := s.refs(job)
	job.Confirm(receipt)
	if err := s.jobRepo.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record confirmed publish job")
	}
	if _, err := s.pinRepo.MarkReferenced(ctx, job.ID, refs); err != nil {
		s.log.Error().Err(err).Strs("cids", refs).Msg("Failed to mark pins referenced")
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("tx_hash", receipt.TxHash).
		Uint64("block", receipt.BlockNumber).
		Msg("Article published")
}

func (s *publishService) reference(ctx context.Context, job *models.PublishJob) {
	refs := s.refs(job)
	if _, err := s.pinRepo.MarkReferenced(ctx, job.ID, refs); err != nil {
		s.log.Error().Err(err).Strs("cids", refs).Msg("Failed to mark pins referenced")
	}
}

func (s *publishService) orphan(ctx context.Context, job *models.PublishJob) {
	if err := s.pinRepo.MarkOrphaned(ctx, job.ContentHash); err != nil {
		s.log.Error().Err(err).Str("cid", job.ContentHash).Msg("Failed to mark article pin orphaned")
	}
}

func (s *publishService) refs(job *models.PublishJob) []string {
	return append([]string{job.ContentHash}, job.Draft.Media...)
}

func (s *publishService) advance(ctx context.Context, job *models.PublishJob, next models.PublishState) error {
	if err := job.Transition(next); err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return s.fail(ctx, job, fmt.Errorf("failed to update publish job: %w", err))
	}
	return nil
}

// fail records err on the job and returns it. The draft is kept so the
// job can be retried.
func (s *publishService) fail(ctx context.Context, job *models.PublishJob, err error) error {
	job.Fail(err)
	if updErr := s.jobRepo.Update(ctx, job); updErr != nil {
		s.log.Error().Err(updErr).Str("job_id", job.ID).Msg("Failed to record publish failure")
	}

	s.log.Warn().
		Err(err).
		Str("job_id", job.ID).
		Str("error_kind", job.ErrorKind).
		Msg("Publish job failed")
	return err
}
