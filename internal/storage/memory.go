package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"contentpipeline/internal/domain"
)

// MemoryStore is an in-process Store implementation used by package tests
// that exercise dedup/collector/site logic without a live S3-compatible
// server.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // container -> key -> body
}

// NewMemoryStore returns an empty MemoryStore with every known container
// pre-created.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string]map[string][]byte{
			ContainerCollected: {},
			ContainerProcessed: {},
			ContainerMarkdown:  {},
			ContainerWeb:       {},
			ContainerBackup:    {},
		},
	}
}

func (m *MemoryStore) bucket(container string) map[string][]byte {
	b, ok := m.data[container]
	if !ok {
		b = map[string][]byte{}
		m.data[container] = b
	}
	return b
}

func (m *MemoryStore) Put(_ context.Context, container, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	m.bucket(container)[key] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, container, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.bucket(container)[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, container, key)
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	return cp, nil
}

func (m *MemoryStore) List(_ context.Context, container, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Object
	for key, body := range m.bucket(container) {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: int64(len(body))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, container, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bucket(container), key)
	return nil
}

func (m *MemoryStore) Copy(_ context.Context, srcContainer, srcKey, dstContainer, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.bucket(srcContainer)[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, srcContainer, srcKey)
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	m.bucket(dstContainer)[dstKey] = cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
