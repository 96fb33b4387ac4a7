package callback

import (
	"context"
	"net/http"

	"github.com/toolbx-labs/webauth/session"
)

// SessionHandle is the per-request session the handlers read and write:
// JSON-encoded values under string keys, a one-step read-and-delete, and an
// explicit Save that must succeed before any redirect is issued.
// *session.Session satisfies it.
type SessionHandle interface {
	Get(key string, v interface{}) (bool, error)
	Set(key string, v interface{}) error
	Remove(key string, v interface{}) (bool, error)
	Save(ctx context.Context, w http.ResponseWriter) error
}

// SessionLoader returns the session for a request. Implementations must be
// safe for concurrent use, since the handlers serve concurrent logins.
type SessionLoader interface {
	LoadSession(r *http.Request) (SessionHandle, error)
}

// Sessions adapts a *session.Manager into a SessionLoader.
func Sessions(m *session.Manager) SessionLoader {
	return managerLoader{m}
}

type managerLoader struct {
	m *session.Manager
}

func (l managerLoader) LoadSession(r *http.Request) (SessionHandle, error) {
	s, err := l.m.Load(r)
	if err != nil {
		return nil, err
	}
	return s, nil
}
