package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with per-session expiry. It is intended
// for development and tests; state does not survive a process restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	state        State
	expiredAfter time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
	}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if entry.expiredAfter.Before(time.Now()) {
		delete(s.entries, key)
		return nil, nil
	}
	return copyState(entry.state), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, state State, ttl time.Duration) (string, error) {
	const op = "session.(MemoryStore).Save"
	if ttl <= 0 {
		return "", fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		key, err := newSessionKey()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if _, exists := s.entries[key]; exists {
			continue
		}
		s.entries[key] = memoryEntry{
			state:        copyState(state),
			expiredAfter: time.Now().Add(ttl),
		}
		return key, nil
	}
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, key string, state State, ttl time.Duration) error {
	const op = "session.(MemoryStore).Update"
	if ttl <= 0 {
		return fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		state:        copyState(state),
		expiredAfter: time.Now().Add(ttl),
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports the number of live (unexpired) sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for _, e := range s.entries {
		if e.expiredAfter.After(now) {
			n++
		}
	}
	return n
}
