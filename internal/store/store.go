// Package store persists quiz session snapshots under a single versioned
// key per quiz.
package store

import (
	"context"
	"fmt"
	"sync"
)

// keyPrefix carries the snapshot format version. Bump it when the
// snapshot layout changes so older entries are never misread.
const keyPrefix = "pai-quiz:session:v1:"

// Key returns the storage key for the quiz with the given fingerprint.
func Key(fingerprint string) string {
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	return keyPrefix + fingerprint
}

// SessionStore persists one serialized session snapshot.
type SessionStore interface {
	// Key returns the key the snapshot is stored under.
	Key() string
	// Save replaces the stored snapshot.
	Save(ctx context.Context, data []byte) error
	// Load returns the stored snapshot; ok is false when there is none.
	Load(ctx context.Context) (data []byte, ok bool, err error)
	// Clear removes the stored snapshot. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MemoryStore is an in-memory implementation of SessionStore.
type MemoryStore struct {
	key  string
	data []byte
	ok   bool
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(key string) *MemoryStore {
	return &MemoryStore{key: key}
}

func (s *MemoryStore) Key() string {
	return s.key
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.ok = true
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok {
		return nil, false, nil
	}
	return append([]byte(nil), s.data...), true, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.ok = false
	return nil
}
