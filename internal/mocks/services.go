package mocks

import (
	"context"

	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/service"
)

// MockArticleService is a mock implementation of ArticleService
type MockArticleService struct {
	ListFunc    func(ctx context.Context) (*models.ArticleList, error)
	GetFunc     func(ctx context.Context, id uint64) (*models.ArticleWithContent, error)
	ProfileFunc func(ctx context.Context, address string) (*models.Profile, error)
	// ProfileAddresses records the address of every Profile call
	ProfileAddresses []string
}

// Verify interface compliance
var _ service.ArticleService = (*MockArticleService)(nil)

func NewMockArticleService() *MockArticleService {
	return &MockArticleService{}
}

func (m *MockArticleService) List(ctx context.Context) (*models.ArticleList, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return models.NewArticleList(nil), nil
}

func (m *MockArticleService) Get(ctx context.Context, id uint64) (*models.ArticleWithContent, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockArticleService) Profile(ctx context.Context, address string) (*models.Profile, error) {
	m.ProfileAddresses = append(m.ProfileAddresses, address)
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx, address)
	}
	if address == "" {
		return nil, models.ErrWalletNotConnected
	}
	return &models.Profile{
		Address:     address,
		DisplayName: models.ShortAddress(address),
		Articles:    []models.ArticleWithContent{},
	}, nil
}

// MockPublishService is a mock implementation of PublishService
type MockPublishService struct {
	SubmitFunc func(ctx context.Context, draft models.Draft, key string) (*models.PublishJob, error)
	RetryFunc  func(ctx context.Context, id string) (*models.PublishJob, error)
	UploadFunc func(ctx context.Context, content models.Content) (*models.PinnedContent, error)
	Jobs       map[string]*models.PublishJob
	Submitted  []models.Draft
	Keys       []string
	Uploads    []models.Content
}

// Verify interface compliance
var _ service.PublishService = (*MockPublishService)(nil)

func NewMockPublishService() *MockPublishService {
	return &MockPublishService{Jobs: make(map[string]*models.PublishJob)}
}

func (m *MockPublishService) Submit(ctx context.Context, draft models.Draft, key string) (*models.PublishJob, error) {
	m.Submitted = append(m.Submitted, draft)
	m.Keys = append(m.Keys, key)
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, draft, key)
	}
	job := &models.PublishJob{
		ID:             "test-job-id",
		IdempotencyKey: key,
		State:          models.PublishStateConfirmed,
		Draft:          models.Draft{Title: draft.Title, Price: draft.Price, IsFree: draft.IsFree},
		ContentHash:    MockCID(1),
		TxHash:         "0xabc",
	}
	m.Jobs[job.ID] = job
	return job, nil
}

func (m *MockPublishService) GetJob(ctx context.Context, id string) (*models.PublishJob, error) {
	if job, ok := m.Jobs[id]; ok {
		return job, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockPublishService) Retry(ctx context.Context, id string) (*models.PublishJob, error) {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, id)
	}
	job, err := m.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := job.Transition(models.PublishStateEditing); err != nil {
		return job, err
	}
	job.State = models.PublishStateConfirmed
	return job, nil
}

func (m *MockPublishService) UploadMedia(ctx context.Context, content models.Content) (*models.PinnedContent, error) {
	m.Uploads = append(m.Uploads, content)
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, content)
	}
	return &models.PinnedContent{
		CID:    "QmMedia1",
		Kind:   models.PinKindMedia,
		Status: models.PinStatusPending,
		Size:   int64(len(content.Data)),
	}, nil
}

func (m *MockPublishService) Stats(ctx context.Context) (*models.Stats, error) {
	jobs := make(map[models.PublishState]int)
	for _, j := range m.Jobs {
		jobs[j.State]++
	}
	return &models.Stats{PublishJobs: jobs, Pins: map[models.PinStatus]int{}}, nil
}

// MockPaymentService is a mock implementation of PaymentService
type MockPaymentService struct {
	PurchaseFunc func(ctx context.Context, id uint64) (*models.PaymentResult, error)
	TipFunc      func(ctx context.Context, id uint64, amount string) (*models.PaymentResult, error)
	Purchases    []uint64
	Tips         []string
}

// Verify interface compliance
var _ service.PaymentService = (*MockPaymentService)(nil)

func NewMockPaymentService() *MockPaymentService {
	return &MockPaymentService{}
}

func (m *MockPaymentService) Purchase(ctx context.Context, id uint64) (*models.PaymentResult, error) {
	m.Purchases = append(m.Purchases, id)
	if m.PurchaseFunc != nil {
		return m.PurchaseFunc(ctx, id)
	}
	return &models.PaymentResult{ArticleID: id, Amount: "0", Message: "Article purchased successfully!"}, nil
}

func (m *MockPaymentService) Tip(ctx context.Context, id uint64, amount string) (*models.PaymentResult, error) {
	m.Tips = append(m.Tips, amount)
	if m.TipFunc != nil {
		return m.TipFunc(ctx, id, amount)
	}
	return &models.PaymentResult{ArticleID: id, Amount: amount, Message: "Thanks for the coffee!"}, nil
}

// MockReconciler is a mock implementation of ReconcilerService
type MockReconciler struct {
	Runs int
}

// Verify interface compliance
var _ service.ReconcilerService = (*MockReconciler)(nil)

func (m *MockReconciler) StartProcessor(ctx context.Context) {}

func (m *MockReconciler) StopProcessor() {}

func (m *MockReconciler) RunOnce(ctx context.Context) (*models.ReconcileReport, error) {
	m.Runs++
	return &models.ReconcileReport{}, nil
}
