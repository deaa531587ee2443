package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/undefinedable/zeppelin-orderkuota/internal/gateway"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, referenceID string, amount int64, expiryMinutes int) (*gateway.PaymentResult, error) {
	args := m.Called(ctx, referenceID, amount, expiryMinutes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResult), args.Error(1)
}

func (m *MockGateway) CheckStatus(ctx context.Context, referenceID string) (*gateway.PaymentResult, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResult), args.Error(1)
}

func (m *MockGateway) CancelPayment(ctx context.Context, referenceID string) (bool, error) {
	args := m.Called(ctx, referenceID)
	return args.Bool(0), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) (*models.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return cloneSnapshot(args.Get(0).(*models.Snapshot)), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, snap *models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

// memoryStore behaves like a persistent store: every Load returns an independent copy.
type memoryStore struct {
	mu    sync.Mutex
	snap  *models.Snapshot
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snap: models.NewSnapshot()}
}

func (s *memoryStore) Load(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap), nil
}

func (s *memoryStore) Save(ctx context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range snap.Transactions {
		l.SyncLimit()
	}
	s.snap = cloneSnapshot(snap)
	s.saves++
	return nil
}

func (s *memoryStore) current() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap)
}

func okPayment(data models.PaymentData) *gateway.PaymentResult {
	return &gateway.PaymentResult{OK: true, Data: &data}
}

func refusedPayment(message string) *gateway.PaymentResult {
	return &gateway.PaymentResult{OK: false, Message: message}
}

// cloneSnapshot deep-copies snap so tests never share state with the store they fake.
func cloneSnapshot(snap *models.Snapshot) *models.Snapshot {
	out := models.NewSnapshot()
	for id, l := range snap.Transactions {
		if l == nil {
			continue
		}
		data := make([]models.TransactionRecord, len(l.Data))
		copy(data, l.Data)
		out.Transactions[id] = &models.UserLedger{Limit: l.Limit, Data: data}
	}
	for id, amount := range snap.Balances {
		out.Balances[id] = amount
	}
	return out
}
