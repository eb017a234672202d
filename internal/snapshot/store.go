// Package snapshot persists the merged conditions snapshot and serves the
// in-memory copy to HTTP readers.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
)

// ErrNotFound is returned by a Backend that has never been written.
var ErrNotFound = errors.New("snapshot not found")

const updatedAtKey = "updatedAt"

// Backend stores one JSON document.
type Backend interface {
	// Read returns the stored document, or ErrNotFound.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored document atomically.
	Write(ctx context.Context, doc []byte) error
}

// Patch is a partial snapshot keyed by top-level JSON field.
type Patch map[string]json.RawMessage

// PatchFromSnapshot turns a full snapshot into a patch carrying every field.
func PatchFromSnapshot(snap *conditions.Snapshot) (Patch, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return p, nil
}

// Store merges patches into the durable snapshot. Saves are serialized and
// the last writer wins.
type Store struct {
	backend Backend
	logger  zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	doc    Patch

	// data is the encoded current snapshot. Every caller gets its own
	// decoded copy, so nothing handed out aliases store state.
	data []byte
}

// NewStore creates a store over backend.
func NewStore(backend Backend, logger zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
	}
}

// Save merges patch over the last durable document. Keys absent from patch
// are kept and updatedAt never moves backward. It returns the merged
// snapshot.
func (s *Store) Save(ctx context.Context, patch Patch) (*conditions.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	merged := make(Patch, len(s.doc)+len(patch))
	for k, v := range s.doc {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}

	if prior, ok := s.doc[updatedAtKey]; ok {
		latest, err := laterTimestamp(prior, patch[updatedAtKey])
		if err != nil {
			return nil, err
		}
		merged[updatedAtKey] = latest
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding merged snapshot: %w", err)
	}

	if err := s.backend.Write(ctx, data); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	s.doc = merged
	s.data = data

	s.logger.Debug().
		Time("updated_at", snap.UpdatedAt).
		Int("keys", len(patch)).
		Msg("snapshot saved")

	return snap, nil
}

// SaveSnapshot saves every field of snap.
func (s *Store) SaveSnapshot(ctx context.Context, snap *conditions.Snapshot) (*conditions.Snapshot, error) {
	patch, err := PatchFromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, patch)
}

// Load returns the current snapshot, or nil when nothing has ever been saved.
// Storage is read only on first use.
func (s *Store) Load(ctx context.Context) (*conditions.Snapshot, error) {
	s.mu.RLock()
	loaded, data := s.loaded, s.data
	s.mu.RUnlock()

	if !loaded {
		s.mu.Lock()
		err := s.ensureLoaded(ctx)
		data = s.data
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	if data == nil {
		return nil, nil
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

// ensureLoaded reads the backend once. Callers must hold the write lock.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var doc Patch
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt document is treated as a cold start; the next save
		// overwrites it.
		s.logger.Warn().Err(err).Msg("discarding unreadable snapshot")
		s.loaded = true
		return nil
	}

	if _, err := decodeSnapshot(data); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable snapshot")
		s.loaded = true
		return nil
	}

	s.doc = doc
	s.data = data
	s.loaded = true
	return nil
}

func laterTimestamp(prior, incoming json.RawMessage) (json.RawMessage, error) {
	if incoming == nil {
		return prior, nil
	}

	var a, b time.Time
	if err := json.Unmarshal(prior, &a); err != nil {
		return incoming, nil //nolint:nilerr // unreadable prior value is replaced
	}
	if err := json.Unmarshal(incoming, &b); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", updatedAtKey, err)
	}
	if b.Before(a) {
		return prior, nil
	}
	return incoming, nil
}

func decodeSnapshot(data []byte) (*conditions.Snapshot, error) {
	var snap conditions.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
