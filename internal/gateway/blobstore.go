// Package gateway implements the Image Gateway: blob retrieval, MIME
// detection from magic bytes, raster decode, and OCR/barcode preprocessing.
package gateway

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sparkfund/services/identity-verification/internal/domain"
)

// BlobStore fetches a byte blob for a logical path.
type BlobStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// MemoryBlobStore is an in-process BlobStore, used for tests and for
// environments where documents are staged directly in memory ahead of the
// pipeline call.
type MemoryBlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{data: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = content
}

func (m *MemoryBlobStore) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// MinioBlobStore is a BlobStore backed by an S3/MinIO-compatible bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore dials endpoint and returns a BlobStore reading from
// bucket. It does not create the bucket; provisioning is out of scope.
func NewMinioBlobStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioBlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, domain.TransientError(err, "construct minio client")
	}
	return &MinioBlobStore{client: client, bucket: bucket}, nil
}

func (s *MinioBlobStore) Download(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		if errResp := minio.ToErrorResponse(err); errResp.Code == "NoSuchKey" {
			return nil, domain.ErrNotFound
		}
		return nil, domain.TransientError(err, "minio get object %s", path)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, domain.ErrNotFound
		}
		return nil, domain.TransientError(err, "minio read object %s", path)
	}
	if buf.Len() == 0 {
		return nil, domain.ErrNotFound
	}
	return buf.Bytes(), nil
}
