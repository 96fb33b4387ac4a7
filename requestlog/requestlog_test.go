package requestlog

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Output: buf,
		Level:  hclog.Debug,
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var buf bytes.Buffer
	h := Middleware(testLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created!"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", nil))
	require.Equal(http.StatusCreated, rec.Code)
	assert.Equal("created!", rec.Body.String())

	out := buf.String()
	assert.Contains(out, "[INFO]")
	assert.Contains(out, "method=POST")
	assert.Contains(out, "path=/things")
	assert.Contains(out, "status=201")
	assert.Contains(out, "bytes=8")
}

func TestMiddleware_DefaultStatus(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var buf bytes.Buffer
	h := Middleware(testLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(buf.String(), "status=200")
}

func TestMiddleware_ServerErrorsLogAtErrorLevel(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var buf bytes.Buffer
	h := Middleware(testLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	assert.Contains(out, "[ERROR]")
	assert.Contains(out, "status=500")
}

func TestMiddleware_Hijack(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var buf bytes.Buffer
	srv := httptest.NewServer(Middleware(testLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(ok, "middleware must keep the Hijacker interface")
		conn, _, err := hj.Hijack()
		require.NoError(err)
		_, _ = conn.Write([]byte("HTTP/1.1 204 No Content\r\nContent-Length: 0\r\n\r\n"))
		_ = conn.Close()
	})))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusNoContent, resp.StatusCode)
	assert.Contains(buf.String(), "status=101")
}

func TestMiddleware_NilLogger(t *testing.T) {
	t.Parallel()

	h := Middleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
