// Package store implements the persisted KeyValueStore record store: the
// Engine is its only writer, and every implementation enforces
// single-writer semantics per request id via optimistic concurrency on
// VerificationRequest.Version.
package store

import (
	"context"

	"github.com/google/uuid"

	"sparkfund/services/identity-verification/internal/domain"
)

// KeyValueStore is the record store the Engine owns. Get returns
// (nil, nil) for an unknown id so callers can distinguish "not found" from
// a transport error; Create and Update surface domain.ErrWriteConflict on a
// losing optimistic-concurrency race, which the Engine maps to a Transient
// error and declines to advance state.
type KeyValueStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.VerificationRequest, error)
	Create(ctx context.Context, req *domain.VerificationRequest) error
	// Update replaces the record stored at next.ID, requiring the stored
	// row's current Version to equal expectedVersion before committing
	// next (whose own Version is expectedVersion+1). This is the single
	// atomic commit of the "fully-formed next-state record" §5 requires.
	Update(ctx context.Context, next *domain.VerificationRequest, expectedVersion int) error
}
