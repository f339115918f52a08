package service

import (
	"context"
	"errors"

	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/repository"
	"github.com/ales-api/internal/retry"
	"github.com/ales-api/internal/validation"
	"github.com/ales-api/internal/wallet"
	"github.com/rs/zerolog"
)

// ConnectionService resolves signer-bound contract handles
type ConnectionService interface {
	Resolve(ctx context.Context) (chain.Contract, error)
	Session() *wallet.Session
}

// ArticleService defines the read side of articles
type ArticleService interface {
	List(ctx context.Context) (*models.ArticleList, error)
	Get(ctx context.Context, id uint64) (*models.ArticleWithContent, error)
	Profile(ctx context.Context, address string) (*models.Profile, error)
}

// PublishService defines the publish flow
type PublishService interface {
	Submit(ctx context.Context, draft models.Draft, idempotencyKey string) (*models.PublishJob, error)
	GetJob(ctx context.Context, id string) (*models.PublishJob, error)
	Retry(ctx context.Context, id string) (*models.PublishJob, error)
	UploadMedia(ctx context.Context, content models.Content) (*models.PinnedContent, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// PaymentService defines purchases and tips
type PaymentService interface {
	Purchase(ctx context.Context, articleID uint64) (*models.PaymentResult, error)
	Tip(ctx context.Context, articleID uint64, amount string) (*models.PaymentResult, error)
}

// ReconcilerService cleans up pins nothing references
type ReconcilerService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	RunOnce(ctx context.Context) (*models.ReconcileReport, error)
}

// Services holds all service interfaces
type Services struct {
	Connection ConnectionService
	Article    ArticleService
	Publish    PublishService
	Payment    PaymentService
	Reconciler ReconcilerService
}

// DraftError carries the validation failures of a rejected draft
type DraftError struct {
	Errors []validation.ValidationError
}

func (e *DraftError) Error() string {
	return "invalid draft: " + validation.Messages(e.Errors)
}

// IsDraftError reports whether err is a draft validation failure
func IsDraftError(err error) (*DraftError, bool) {
	var de *DraftError
	ok := errors.As(err, &de)
	return de, ok
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, connector chain.Connector, store ipfs.Store, cfg *config.Config, log zerolog.Logger) *Services {
	signer := wallet.NewSession("server", cfg.Chain.SupportedChainIDs)
	policy := retry.Fixed(cfg.Retry.MaxAttempts, cfg.Retry.Delay)
	validator := validation.NewValidator()

	conn := NewConnectionService(connector, policy, signer, log)

	return &Services{
		Connection: conn,
		Article:    NewArticleService(conn, store, cfg.Fanout, log),
		Publish:    NewPublishService(conn, store, repos.Publish, repos.Pin, validator, cfg.Server.WriteOpTimeout, log),
		Payment:    NewPaymentService(conn, validator, cfg.Server.WriteOpTimeout, log),
		Reconciler: NewReconciler(repos.Pin, store, cfg.Reconciler, log),
	}
}
