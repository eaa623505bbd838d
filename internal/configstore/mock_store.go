package configstore

import (
	"context"
	"sync"

	"github.com/remindly/expiry-notifier/internal/domain"
)

// MockStore is a hand-written, in-memory Store implementation used in unit
// tests. No mock-generation library needed.
type MockStore struct {
	mu      sync.RWMutex
	records map[string]*domain.CredentialRecord

	// Optional error override — set in tests to simulate store failures.
	GetErr error

	// GetCalls counts Get invocations, letting tests assert the no-caching
	// contract and the config-resolution order.
	GetCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{records: make(map[string]*domain.CredentialRecord)}
}

// Put seeds a record under its key.
func (m *MockStore) Put(rec *domain.CredentialRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
}

func (m *MockStore) Get(_ context.Context, key string) (*domain.CredentialRecord, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrConfigMissing
	}
	clone := *rec
	return &clone, nil
}
