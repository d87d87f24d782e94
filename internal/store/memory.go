package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"sparkfund/services/identity-verification/internal/domain"
)

// MemoryStore is an in-process KeyValueStore, used for tests and single-node
// deployments without a Postgres backend.
type MemoryStore struct {
	mu   sync.Mutex
	data map[uuid.UUID]*domain.VerificationRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[uuid.UUID]*domain.VerificationRequest)}
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.data[id]
	if !ok {
		return nil, nil
	}
	return req.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, req *domain.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[req.ID]; exists {
		return domain.ErrWriteConflict
	}
	s.data[req.ID] = req.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, next *domain.VerificationRequest, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[next.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrWriteConflict
	}
	s.data[next.ID] = next.Clone()
	return nil
}
