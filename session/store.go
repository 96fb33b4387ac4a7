package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrKeyGeneration    = errors.New("session key generation failed")
)

// State is a session's decoded state: JSON-encoded values under string keys.
type State = map[string]json.RawMessage

// Store defines where session state lives. Implementations must be safe for
// concurrent use, since a store is shared by every in-flight request.
type Store interface {
	// Load returns the state stored under key, or nil when the key is
	// unknown or the session has expired.
	Load(ctx context.Context, key string) (State, error)

	// Save persists state under a fresh, unpredictable key and returns the
	// key. The ttl starts counting now.
	Save(ctx context.Context, state State, ttl time.Duration) (string, error)

	// Update replaces the state stored under key and restarts its ttl.
	Update(ctx context.Context, key string, state State, ttl time.Duration) error

	// Delete removes the state stored under key. Deleting an unknown key is
	// not an error.
	Delete(ctx context.Context, key string) error
}

// newSessionKey generates a fresh session key from a cryptographically
// secure source.
func newSessionKey() (string, error) {
	const op = "session.newSessionKey"
	first, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrKeyGeneration)
	}
	second, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrKeyGeneration)
	}
	return first + second, nil
}

// copyState deep-copies a session state so callers can't mutate what a store
// holds.
func copyState(state State) State {
	if state == nil {
		return nil
	}
	out := make(State, len(state))
	for k, v := range state {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
