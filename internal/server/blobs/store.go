// Package blobs keeps file payloads in S3-compatible object storage.
// Object metadata lives in the database; only the bytes go here.
package blobs

import (
	"bytes"
	"context"
	"sync"

	"github.com/dmitrijs2005/artivault/internal/common"
)

// Store puts payloads and hands out time-limited download links.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// FileKey is the storage key of a file payload with the given sha256.
func FileKey(sha256 string) string {
	return "files/" + sha256
}

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (m *MemoryStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(body)
	return nil
}

func (m *MemoryStore) PresignGet(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", common.NotFoundf("payload %s is not stored", key)
	}
	return "memory://" + key, nil
}

// Get returns a copy of the stored payload.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return bytes.Clone(b), ok
}
