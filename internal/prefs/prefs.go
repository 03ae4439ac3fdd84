// Package prefs persists small key-value preferences across restarts.
package prefs

import (
	"context"
	"errors"
	"sync"
)

// KeyRestartReason holds the reason for the last deliberate restart.
const KeyRestartReason = "restart_reason"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("prefs: key not found")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RestartReason returns the stored restart reason, or "" when none is
// stored. The caller deletes KeyRestartReason once it has been reported.
func RestartReason(ctx context.Context, s Store) (string, error) {
	reason, err := s.Get(ctx, KeyRestartReason)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return reason, nil
}

// MemoryStore is an in-process Store for tests and when no path is configured.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
