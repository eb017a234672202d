package snapshot

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory Backend for tests and local runs.
type MemoryBackend struct {
	mu     sync.RWMutex
	doc    []byte
	writes int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Read returns a copy of the stored document.
func (b *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.doc == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b.doc))
	copy(out, b.doc)
	return out, nil
}

// Write replaces the stored document.
func (b *MemoryBackend) Write(_ context.Context, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.doc = make([]byte, len(doc))
	copy(b.doc, doc)
	b.writes++
	return nil
}

// Writes returns how many times Write was called.
func (b *MemoryBackend) Writes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes
}

var _ Backend = (*MemoryBackend)(nil)
