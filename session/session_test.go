package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, opt ...Option) *Manager {
	t.Helper()
	m, err := NewManager(NewMemoryStore(), opt...)
	require.NoError(t, err)
	return m
}

// requestWith returns a request carrying the session cookie a previous
// response set.
func requestWith(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNewManager(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	_, err := NewManager(nil)
	assert.ErrorIs(err, ErrNilParameter)

	_, err = NewManager(NewMemoryStore(), WithTTL(-time.Minute))
	assert.ErrorIs(err, ErrInvalidParameter)
}

func TestManager_LoadAndSave(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m := testManager(t)

	// no cookie yet: a fresh session
	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	assert.True(sess.IsNew())

	require.NoError(sess.Set("user", "alice"))
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(ctx, rec))
	assert.False(sess.IsNew())

	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(DefaultCookieName, cookies[0].Name)
	assert.NotEmpty(cookies[0].Value)
	assert.True(cookies[0].HttpOnly)
	assert.True(cookies[0].Secure)
	assert.Equal(http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal("/", cookies[0].Path)

	// the cookie round-trips back to the stored state
	sess2, err := m.Load(requestWith(t, rec))
	require.NoError(err)
	assert.False(sess2.IsNew())

	var user string
	found, err := sess2.Get("user", &user)
	require.NoError(err)
	assert.True(found)
	assert.Equal("alice", user)
}

func TestManager_Load_StaleCookie(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m := testManager(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "gone"})
	sess, err := m.Load(r)
	require.NoError(err)
	assert.True(sess.IsNew())
}

func TestManager_Load_NilRequest(t *testing.T) {
	t.Parallel()
	m := testManager(t)
	_, err := m.Load(nil)
	assert.ErrorIs(t, err, ErrNilParameter)
}

func TestSession_GetMissingKey(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m := testManager(t)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)

	var v string
	found, err := sess.Get("missing", &v)
	require.NoError(err)
	assert.False(found)
}

func TestSession_Remove(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m := testManager(t)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	require.NoError(sess.Set("attempt", "secrets"))
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(ctx, rec))

	sess, err = m.Load(requestWith(t, rec))
	require.NoError(err)

	var v string
	found, err := sess.Remove("attempt", &v)
	require.NoError(err)
	assert.True(found)
	assert.Equal("secrets", v)

	// consumed: a second remove finds nothing
	found, err = sess.Remove("attempt", &v)
	require.NoError(err)
	assert.False(found)
}

func TestSession_Remove_NilTarget(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m := testManager(t)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	require.NoError(sess.Set("k", 42))

	found, err := sess.Remove("k", nil)
	require.NoError(err)
	assert.True(found)
	found, _ = sess.Remove("k", nil)
	assert.False(found)
}

func TestSession_Remove_UndecodableValueIsStillRemoved(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m := testManager(t)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	require.NoError(sess.Set("k", "not a number"))

	var n int
	found, err := sess.Remove("k", &n)
	assert.True(found)
	assert.Error(err)

	// the value is gone despite the decode failure
	found, err = sess.Remove("k", nil)
	require.NoError(err)
	assert.False(found)
}

func TestSession_SaveTwiceUpdates(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	store := NewMemoryStore()
	m, err := NewManager(store)
	require.NoError(err)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(ctx, rec))
	require.NoError(sess.Set("user", "alice"))
	require.NoError(sess.Save(ctx, httptest.NewRecorder()))

	// still a single stored session
	assert.Equal(1, store.Len())

	sess2, err := m.Load(requestWith(t, rec))
	require.NoError(err)
	var user string
	found, err := sess2.Get("user", &user)
	require.NoError(err)
	assert.True(found)
	assert.Equal("alice", user)
}

func TestSession_Destroy(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	store := NewMemoryStore()
	m, err := NewManager(store)
	require.NoError(err)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	require.NoError(sess.Set("user", "alice"))
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(ctx, rec))
	require.Equal(1, store.Len())

	destroyRec := httptest.NewRecorder()
	require.NoError(sess.Destroy(ctx, destroyRec))
	assert.Equal(0, store.Len())
	assert.True(sess.IsNew())

	cookies := destroyRec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Empty(cookies[0].Value)
	assert.Negative(cookies[0].MaxAge)
}

func TestManager_Options(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m := testManager(t, WithCookieName("my_app"), WithInsecureCookie())

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(ctx, rec))

	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal("my_app", cookies[0].Name)
	assert.False(cookies[0].Secure)
}

func TestManager_TTLExpiry(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m := testManager(t, WithTTL(50*time.Millisecond))

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	require.NoError(sess.Set("user", "alice"))
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(ctx, rec))

	time.Sleep(100 * time.Millisecond)

	sess2, err := m.Load(requestWith(t, rec))
	require.NoError(err)
	assert.True(sess2.IsNew())
}

// failingStore errors on every write, for exercising save failure paths.
type failingStore struct {
	Store
}

func (failingStore) Save(context.Context, State, time.Duration) (string, error) {
	return "", errors.New("store is down")
}

func (failingStore) Update(context.Context, string, State, time.Duration) error {
	return errors.New("store is down")
}

func TestSession_SaveFailure(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m, err := NewManager(failingStore{NewMemoryStore()})
	require.NoError(err)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	rec := httptest.NewRecorder()
	require.Error(sess.Save(ctx, rec))

	// no cookie is set when the store write fails
	assert.Empty(rec.Result().Cookies())
}
