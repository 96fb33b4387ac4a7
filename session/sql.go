package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Schema is the table a SQLStore needs. It is plain enough for sqlite,
// postgres and mysql; run it (or an equivalent migration) before using the
// store.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key   TEXT PRIMARY KEY,
	session_state TEXT NOT NULL,
	expired_after TIMESTAMP NOT NULL
);`

// SQLStore is a Store backed by a database/sql table: one row per session
// holding the key, the JSON-encoded state and the expiry timestamp.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps a connected database. The sessions table must already
// exist (see Schema).
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	const op = "session.NewSQLStore"
	if db == nil {
		return nil, fmt.Errorf("%s: db is nil: %w", op, ErrNilParameter)
	}
	return &SQLStore{db: db}, nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, key string) (State, error) {
	const op = "session.(SQLStore).Load"
	var (
		rawState     string
		expiredAfter time.Time
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT session_state, expired_after FROM sessions WHERE session_key = ?`, key)
	switch err := row.Scan(&rawState, &expiredAfter); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: unable to query session: %w", op, err)
	}
	if expiredAfter.Before(time.Now()) {
		return nil, nil
	}
	var state State
	if err := json.Unmarshal([]byte(rawState), &state); err != nil {
		return nil, fmt.Errorf("%s: unable to decode session state: %w", op, err)
	}
	return state, nil
}

// Save implements Store. Key collisions (however unlikely) are detected and
// retried with a fresh key.
func (s *SQLStore) Save(ctx context.Context, state State, ttl time.Duration) (string, error) {
	const op = "session.(SQLStore).Save"
	if ttl <= 0 {
		return "", fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("%s: unable to encode session state: %w", op, err)
	}
	expiredAfter := time.Now().Add(ttl)

	for {
		key, err := newSessionKey()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_key = ?`, key)
		switch err := row.Scan(&exists); {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return "", fmt.Errorf("%s: unable to query session: %w", op, err)
		default:
			continue
		}

		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (session_key, session_state, expired_after) VALUES (?, ?, ?)`,
			key, string(encoded), expiredAfter,
		); err != nil {
			return "", fmt.Errorf("%s: unable to insert session: %w", op, err)
		}
		return key, nil
	}
}

// Update implements Store.
func (s *SQLStore) Update(ctx context.Context, key string, state State, ttl time.Duration) error {
	const op = "session.(SQLStore).Update"
	if ttl <= 0 {
		return fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%s: unable to encode session state: %w", op, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET session_state = ?, expired_after = ? WHERE session_key = ?`,
		string(encoded), time.Now().Add(ttl), key,
	); err != nil {
		return fmt.Errorf("%s: unable to update session: %w", op, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	const op = "session.(SQLStore).Delete"
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("%s: unable to delete session: %w", op, err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry has passed and reports how
// many were removed. Call it periodically; nothing else sweeps.
func (s *SQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	const op = "session.(SQLStore).DeleteExpired"
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expired_after < ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: unable to delete expired sessions: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
