package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"sparkfund/services/identity-verification/internal/domain"
)

// ArtifactStore owns DocumentArtifact metadata, separate from the
// VerificationRequest record it is referenced from (§3: "Owned by exactly
// one VerificationRequest").
type ArtifactStore interface {
	Put(ctx context.Context, artifact *domain.DocumentArtifact) error
	Get(ctx context.Context, id uuid.UUID) (*domain.DocumentArtifact, error)
}

// MemoryArtifactStore is an in-process ArtifactStore for tests and
// single-node deployments.
type MemoryArtifactStore struct {
	mu   sync.Mutex
	data map[uuid.UUID]*domain.DocumentArtifact
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{data: make(map[uuid.UUID]*domain.DocumentArtifact)}
}

func (s *MemoryArtifactStore) Put(ctx context.Context, artifact *domain.DocumentArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *artifact
	s.data[artifact.ID] = &cp
	return nil
}

func (s *MemoryArtifactStore) Get(ctx context.Context, id uuid.UUID) (*domain.DocumentArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
