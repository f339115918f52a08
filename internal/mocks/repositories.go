package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/repository"
)

// MockPublishRepository is a mock implementation of PublishRepository
type MockPublishRepository struct {
	mu          sync.Mutex
	Jobs        map[string]*models.PublishJob
	KeyToJob    map[string]*models.PublishJob
	InsertError error
	UpdateError error
	// States records every state passed to Update, in order
	States []models.PublishState
}

// Verify interface compliance
var _ repository.PublishRepository = (*MockPublishRepository)(nil)

func NewMockPublishRepository() *MockPublishRepository {
	return &MockPublishRepository{
		Jobs:     make(map[string]*models.PublishJob),
		KeyToJob: make(map[string]*models.PublishJob),
	}
}

func (m *MockPublishRepository) Create(ctx context.Context, job *models.PublishJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	m.Jobs[job.ID] = job
	if job.IdempotencyKey != "" {
		m.KeyToJob[job.IdempotencyKey] = job
	}
	return nil
}

func (m *MockPublishRepository) Update(ctx context.Context, job *models.PublishJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States = append(m.States, job.State)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.Jobs[job.ID] = job
	return nil
}

func (m *MockPublishRepository) GetByID(ctx context.Context, id string) (*models.PublishJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Jobs[id], nil
}

func (m *MockPublishRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.PublishJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.KeyToJob[key], nil
}

func (m *MockPublishRepository) CountByState(ctx context.Context) (map[models.PublishState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.PublishState]int)
	for _, j := range m.Jobs {
		counts[j.State]++
	}
	return counts, nil
}

// MockPinRepository is an in-memory pin ledger
type MockPinRepository struct {
	mu   sync.Mutex
	Pins map[string]*models.PinnedContent
	// ClaimFunc overrides ClaimForUnpin when set
	ClaimFunc    func(ctx context.Context, cid string) (bool, error)
	RecordError  error
	ReleaseError error
}

// Verify interface compliance
var _ repository.PinRepository = (*MockPinRepository)(nil)

func NewMockPinRepository() *MockPinRepository {
	return &MockPinRepository{Pins: make(map[string]*models.PinnedContent)}
}

// Status returns the status of cid, or "" when unknown
func (m *MockPinRepository) Status(cid string) models.PinStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Pins[cid]; ok {
		return p.Status
	}
	return ""
}

// Put stores a pin as-is, for test setup
func (m *MockPinRepository) Put(pin *models.PinnedContent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pin
	m.Pins[pin.CID] = &cp
}

func (m *MockPinRepository) Record(ctx context.Context, pin *models.PinnedContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordError != nil {
		return m.RecordError
	}
	now := time.Now()
	if existing, ok := m.Pins[pin.CID]; ok {
		if existing.Status != models.PinStatusReferenced {
			existing.Status = models.PinStatusPending
			existing.UpdatedAt = now
			if pin.JobID != "" {
				existing.JobID = pin.JobID
			}
		}
	} else {
		cp := *pin
		cp.Status = models.PinStatusPending
		cp.CreatedAt = now
		cp.UpdatedAt = now
		m.Pins[pin.CID] = &cp
	}
	pin.Status = models.PinStatusPending
	return nil
}

func (m *MockPinRepository) GetByCID(ctx context.Context, cid string) (*models.PinnedContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Pins[cid]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *MockPinRepository) MarkReferenced(ctx context.Context, jobID string, cids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, cid := range cids {
		p, ok := m.Pins[cid]
		if !ok || (p.Status != models.PinStatusPending && p.Status != models.PinStatusOrphaned) {
			continue
		}
		p.Status = models.PinStatusReferenced
		p.JobID = jobID
		p.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func (m *MockPinRepository) ReleaseReferences(ctx context.Context, jobID string, cids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, cid := range cids {
		p, ok := m.Pins[cid]
		if !ok || p.Status != models.PinStatusReferenced || p.JobID != jobID {
			continue
		}
		p.Status = models.PinStatusPending
		p.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func (m *MockPinRepository) MarkOrphaned(ctx context.Context, cid string) error {
	m.transition(cid, models.PinStatusPending, models.PinStatusOrphaned)
	return nil
}

func (m *MockPinRepository) PromoteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.Pins {
		if p.Status == models.PinStatusPending && p.UpdatedAt.Before(olderThan) {
			p.Status = models.PinStatusOrphaned
			p.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockPinRepository) ListOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]*models.PinnedContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PinnedContent
	for _, p := range m.Pins {
		if p.Status == models.PinStatusOrphaned && p.UpdatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockPinRepository) ClaimForUnpin(ctx context.Context, cid string) (bool, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, cid)
	}
	return m.transition(cid, models.PinStatusOrphaned, models.PinStatusUnpinning), nil
}

func (m *MockPinRepository) MarkUnpinned(ctx context.Context, cid string) error {
	m.transition(cid, models.PinStatusUnpinning, models.PinStatusUnpinned)
	return nil
}

func (m *MockPinRepository) ReleaseClaim(ctx context.Context, cid string) error {
	if m.ReleaseError != nil {
		return m.ReleaseError
	}
	m.transition(cid, models.PinStatusUnpinning, models.PinStatusOrphaned)
	return nil
}

func (m *MockPinRepository) CountByStatus(ctx context.Context) (map[models.PinStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.PinStatus]int)
	for _, p := range m.Pins {
		counts[p.Status]++
	}
	return counts, nil
}

// transition moves cid from one status to another, keeping updated_at so
// age-based queries still see the original timestamp
func (m *MockPinRepository) transition(cid string, from, to models.PinStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Pins[cid]
	if !ok || p.Status != from {
		return false
	}
	p.Status = to
	return true
}
