package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultCookieName carries the session key.
	DefaultCookieName = "webauth_session"

	// DefaultTTL is how long a session lives without being saved again.
	DefaultTTL = 24 * time.Hour
)

// Manager loads and saves sessions, pairing a Store with the cookie that
// carries the session key. A Manager is read-only after construction and
// safe for concurrent use.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	insecure   bool
	logger     hclog.Logger
}

// NewManager creates a Manager for the given store.
//
// Supported options: WithCookieName, WithTTL, WithInsecureCookie,
// WithSessionLogger
func NewManager(store Store, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	if opts.withTTL <= 0 {
		return nil, fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	return &Manager{
		store:      store,
		cookieName: opts.withCookieName,
		ttl:        opts.withTTL,
		insecure:   opts.withInsecureCookie,
		logger:     opts.withLogger,
	}, nil
}

// Load returns the session for the request: the one its cookie points at,
// or a fresh empty session when there is no cookie or the stored session is
// gone or expired. A fresh session gets its key (and cookie) on first Save.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	const op = "session.(Manager).Load"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	fresh := &Session{m: m, state: State{}}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return fresh, nil
	}
	state, err := m.store.Load(r.Context(), cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to load session: %w", op, err)
	}
	if state == nil {
		// stale cookie
		return fresh, nil
	}
	return &Session{m: m, key: cookie.Value, state: state}, nil
}

// Session is one user's session state for the duration of a request. Reads
// and writes work on an in-memory copy; nothing is persisted until Save.
// A Session is not safe for concurrent use.
type Session struct {
	m     *Manager
	key   string
	state State
}

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool { return s.key == "" }

// Get decodes the value stored under key into v (when v is non-nil) and
// reports whether the key was present.
func (s *Session) Get(key string, v interface{}) (bool, error) {
	const op = "session.(Session).Get"
	raw, ok := s.state[key]
	if !ok {
		return false, nil
	}
	if v == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%s: unable to decode value for %q: %w", op, key, err)
	}
	return true, nil
}

// Set stores v under key, replacing any prior value.
func (s *Session) Set(key string, v interface{}) error {
	const op = "session.(Session).Set"
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: unable to encode value for %q: %w", op, key, err)
	}
	s.state[key] = raw
	return nil
}

// Remove reads and deletes the value under key in one step, decoding it into
// v when v is non-nil. It reports whether the key was present. A present but
// undecodable value is still removed, and the decode error returned.
func (s *Session) Remove(key string, v interface{}) (bool, error) {
	const op = "session.(Session).Remove"
	raw, ok := s.state[key]
	if !ok {
		return false, nil
	}
	delete(s.state, key)
	if v == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%s: unable to decode value for %q: %w", op, key, err)
	}
	return true, nil
}

// Save persists the session and, for a session saved for the first time,
// sets the cookie carrying its key. Handlers must call Save before writing
// their response body or any redirect: a handler that cannot persist its
// session state must be able to refuse to proceed.
func (s *Session) Save(ctx context.Context, w http.ResponseWriter) error {
	const op = "session.(Session).Save"
	if s.key == "" {
		key, err := s.m.store.Save(ctx, s.state, s.m.ttl)
		if err != nil {
			return fmt.Errorf("%s: unable to save session: %w", op, err)
		}
		s.key = key
	} else {
		if err := s.m.store.Update(ctx, s.key, s.state, s.m.ttl); err != nil {
			return fmt.Errorf("%s: unable to update session: %w", op, err)
		}
	}
	http.SetCookie(w, s.m.cookie(s.key, int(s.m.ttl.Seconds())))
	return nil
}

// Destroy deletes the session from the store and expires its cookie.
func (s *Session) Destroy(ctx context.Context, w http.ResponseWriter) error {
	const op = "session.(Session).Destroy"
	if s.key != "" {
		if err := s.m.store.Delete(ctx, s.key); err != nil {
			return fmt.Errorf("%s: unable to delete session: %w", op, err)
		}
		s.key = ""
	}
	s.state = State{}
	http.SetCookie(w, s.m.cookie("", -1))
	return nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !m.insecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Option defines a common functional options type
type Option func(interface{})

type options struct {
	withCookieName     string
	withTTL            time.Duration
	withInsecureCookie bool
	withLogger         hclog.Logger
}

func getOpts(opt ...Option) options {
	opts := options{
		withCookieName: DefaultCookieName,
		withTTL:        DefaultTTL,
		withLogger:     hclog.NewNullLogger(),
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithCookieName overrides the name of the cookie carrying the session key.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookieName = name
		}
	}
}

// WithTTL overrides how long saved sessions live.
func WithTTL(ttl time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withTTL = ttl
		}
	}
}

// WithInsecureCookie drops the cookie's Secure attribute, for plain-http
// development setups.
func WithInsecureCookie() Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withInsecureCookie = true
		}
	}
}

// WithSessionLogger provides an optional logger.
func WithSessionLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}
