package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfund/services/identity-verification/internal/domain"
)

func TestMemoryBlobStore_DownloadKnown(t *testing.T) {
	store := NewMemoryBlobStore()
	store.Put("front.jpg", []byte("hello"))

	b, err := store.Download(context.Background(), "front.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)
}

func TestMemoryBlobStore_DownloadUnknown(t *testing.T) {
	store := NewMemoryBlobStore()

	_, err := store.Download(context.Background(), "missing.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
