package mocks

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// MockConnector hands out Contract on every Connect unless ConnectFunc is set
type MockConnector struct {
	Contract     *MockContract
	ConnectFunc  func(ctx context.Context, attempt int) (chain.Contract, error)
	ConnectCalls atomic.Int32
}

// Verify interface compliance
var _ chain.Connector = (*MockConnector)(nil)

func NewMockConnector(contract *MockContract) *MockConnector {
	return &MockConnector{Contract: contract}
}

func (m *MockConnector) Connect(ctx context.Context) (chain.Contract, error) {
	attempt := int(m.ConnectCalls.Add(1))
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, attempt)
	}
	return m.Contract, nil
}

// PaymentCall records one purchase or tip submission
type PaymentCall struct {
	ArticleID uint64
	Amount    string
}

// PublishCall records one publish submission
type PublishCall struct {
	Title      string
	ContentRef string
	Price      string
	IsFree     bool
}

// MockContract is an in-memory article contract
type MockContract struct {
	mu       sync.Mutex
	Signer   common.Address
	Chain    *big.Int
	Articles map[uint64]*models.Article

	FetchOneFunc func(ctx context.Context, id uint64) (*models.Article, error)
	ReceiptFunc  func(ctx context.Context, txHash string) (*models.TxReceipt, error)
	PublishErr   error
	PurchaseErr  error
	TipErr       error
	CountErr     error

	// CountOverride replaces the reported article count when non-zero
	CountOverride uint64

	FetchOneCalls atomic.Int32
	CloseCalls    atomic.Int32
	Publishes     []PublishCall
	Purchases     []PaymentCall
	Tips          []PaymentCall
}

// Verify interface compliance
var _ chain.Contract = (*MockContract)(nil)

func NewMockContract() *MockContract {
	return &MockContract{
		Signer:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Chain:    big.NewInt(11155111),
		Articles: make(map[uint64]*models.Article),
	}
}

// AddArticle appends an article at the next id and returns it
func (m *MockContract) AddArticle(a models.Article) *models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uint64(len(m.Articles) + 1)
	if a.Author == "" {
		a.Author = m.Signer.Hex()
	}
	m.Articles[a.ID] = &a
	return &a
}

func (m *MockContract) Address() common.Address { return m.Signer }

func (m *MockContract) ChainID() *big.Int { return m.Chain }

func (m *MockContract) Publish(ctx context.Context, title, contentRef, price string, isFree bool) (*models.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Publishes = append(m.Publishes, PublishCall{Title: title, ContentRef: contentRef, Price: price, IsFree: isFree})
	if m.PublishErr != nil {
		return nil, m.PublishErr
	}
	return m.receipt(len(m.Publishes)), nil
}

func (m *MockContract) Purchase(ctx context.Context, articleID uint64, amount string) (*models.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Purchases = append(m.Purchases, PaymentCall{ArticleID: articleID, Amount: amount})
	if m.PurchaseErr != nil {
		return nil, m.PurchaseErr
	}
	return m.receipt(len(m.Purchases)), nil
}

func (m *MockContract) Tip(ctx context.Context, articleID uint64, amount string) (*models.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tips = append(m.Tips, PaymentCall{ArticleID: articleID, Amount: amount})
	if m.TipErr != nil {
		return nil, m.TipErr
	}
	return m.receipt(len(m.Tips)), nil
}

func (m *MockContract) FetchOne(ctx context.Context, id uint64) (*models.Article, error) {
	m.FetchOneCalls.Add(1)
	if m.FetchOneFunc != nil {
		return m.FetchOneFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Articles[id]
	if !ok {
		return nil, fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *MockContract) FetchCount(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	if m.CountOverride > 0 {
		return m.CountOverride, nil
	}
	return uint64(len(m.Articles)), nil
}

// Receipt answers from ReceiptFunc, or reports every hash as mined
func (m *MockContract) Receipt(ctx context.Context, txHash string) (*models.TxReceipt, error) {
	if m.ReceiptFunc != nil {
		return m.ReceiptFunc(ctx, txHash)
	}
	return &models.TxReceipt{TxHash: txHash, BlockNumber: 100, GasUsed: 21000}, nil
}

func (m *MockContract) Close() {
	m.CloseCalls.Add(1)
}

// PurchaseCount returns the number of purchase submissions so far
func (m *MockContract) PurchaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Purchases)
}

func (m *MockContract) receipt(n int) *models.TxReceipt {
	return &models.TxReceipt{
		TxHash:      fmt.Sprintf("0x%064x", n),
		BlockNumber: uint64(100 + n),
		GasUsed:     21000,
	}
}

// MockContentStore is an in-memory content store
type MockContentStore struct {
	mu       sync.Mutex
	Contents map[string]string
	// Failing CIDs make Fetch fail and Get return the placeholder
	Failing  map[string]bool
	PutErr   error
	UnpinErr error
	Puts     []models.Content
	Unpinned []string
	nextCID  int

	// UnpinFunc overrides Unpin when set
	UnpinFunc func(ctx context.Context, cid string) error
}

// Verify interface compliance
var _ ipfs.Store = (*MockContentStore)(nil)

func NewMockContentStore() *MockContentStore {
	return &MockContentStore{
		Contents: make(map[string]string),
		Failing:  make(map[string]bool),
	}
}

func (m *MockContentStore) Put(ctx context.Context, content models.Content) (*models.PinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts = append(m.Puts, content)
	if m.PutErr != nil {
		return nil, m.PutErr
	}
	m.nextCID++
	cid := MockCID(m.nextCID)
	m.Contents[cid] = string(content.Data)
	return &models.PinResult{CID: cid, Size: int64(len(content.Data))}, nil
}

func (m *MockContentStore) Fetch(ctx context.Context, cid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing[cid] {
		return "", fmt.Errorf("%w: %s", models.ErrContentFetchFailed, cid)
	}
	content, ok := m.Contents[cid]
	if !ok {
		return "", fmt.Errorf("%w: %s not found", models.ErrContentFetchFailed, cid)
	}
	return content, nil
}

func (m *MockContentStore) Get(ctx context.Context, cid string) string {
	content, err := m.Fetch(ctx, cid)
	if err != nil {
		return models.ContentFetchPlaceholder
	}
	return content
}

func (m *MockContentStore) Unpin(ctx context.Context, cid string) error {
	if m.UnpinFunc != nil {
		return m.UnpinFunc(ctx, cid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UnpinErr != nil {
		return m.UnpinErr
	}
	m.Unpinned = append(m.Unpinned, cid)
	delete(m.Contents, cid)
	return nil
}

// MockCID returns a well-formed CIDv0 unique to n
func MockCID(n int) string {
	// base58 has no zero digit
	digits := strings.ReplaceAll(strconv.Itoa(n), "0", "o")
	return "QmMock" + strings.Repeat("z", 40-len(digits)) + digits
}

// PutCount returns the number of uploads so far
func (m *MockContentStore) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Puts)
}
