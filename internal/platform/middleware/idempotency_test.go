package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idemCall struct {
	method, path, key, org string
}

func runIdempotent(t *testing.T, mw echo.MiddlewareFunc, h echo.HandlerFunc, call idemCall) (*httptest.ResponseRecorder, error) {
	t.Helper()
	return runIdempotentAs(t, mw, h, call, "user-1")
}

func runIdempotentAs(t *testing.T, mw echo.MiddlewareFunc, h echo.HandlerFunc, call idemCall, user string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(call.method, call.path, strings.NewReader(`{}`))
	if call.key != "" {
		req.Header.Set(IdempotencyKeyHeader, call.key)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if call.org != "" {
		c.Set("org_id", call.org)
	}
	if user != "" {
		c.Set("user_id", user)
	}
	return rec, mw(h)(c)
}

func countingHandler(calls *int) echo.HandlerFunc {
	return func(c echo.Context) error {
		*calls++
		c.Response().Header().Set("Location", "/api/v1/requests/1")
		return c.JSON(http.StatusCreated, map[string]int{"n": *calls})
	}
}

func TestIdempotency_ReplaysFirstResponse(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	calls := 0
	call := idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"}

	first, err := runIdempotent(t, mw, countingHandler(&calls), call)
	require.NoError(t, err)
	second, err := runIdempotent(t, mw, countingHandler(&calls), call)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "handler must run once")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotencyReplayedHeader))
	assert.Equal(t, "/api/v1/requests/1", second.Header().Get("Location"))
	assert.Empty(t, first.Header().Get(IdempotencyReplayedHeader))
}

func TestIdempotency_KeysAreScopedPerOrganization(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	calls := 0

	_, err := runIdempotent(t, mw, countingHandler(&calls), idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"})
	require.NoError(t, err)
	_, err = runIdempotent(t, mw, countingHandler(&calls), idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-b"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	calls := 0
	call := idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"}

	first, err := runIdempotentAs(t, mw, countingHandler(&calls), call, "alice")
	require.NoError(t, err)
	second, err := runIdempotentAs(t, mw, countingHandler(&calls), call, "bob")
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "colleagues sharing a key must not see each other's responses")
	assert.NotEqual(t, first.Body.String(), second.Body.String())
	assert.Empty(t, second.Header().Get(IdempotencyReplayedHeader))
}

func TestIdempotency_ConcurrentDuplicateIsRejected(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	mw := Idempotency(store)
	call := idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"}
	calls := 0

	var dupErr error
	slow := func(c echo.Context) error {
		calls++
		// A duplicate lands while this request is still running.
		_, dupErr = runIdempotent(t, mw, countingHandler(&calls), call)
		return c.JSON(http.StatusCreated, map[string]int{"n": calls})
	}

	_, err := runIdempotent(t, mw, slow, call)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "duplicate must not reach the handler")
	httpErr, ok := dupErr.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", dupErr)
	assert.Equal(t, http.StatusConflict, httpErr.Code)

	// Once the first finishes, the key replays and is free again.
	again, err := runIdempotent(t, mw, countingHandler(&calls), call)
	require.NoError(t, err)
	assert.Equal(t, "true", again.Header().Get(IdempotencyReplayedHeader))
	assert.True(t, store.Reserve("org-a:user-1:other"))
}

func TestIdempotency_ReleasesKeyAfterError(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	call := idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"}
	failing := func(echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest) }

	_, err := runIdempotent(t, mw, failing, call)
	require.Error(t, err)

	calls := 0
	_, err = runIdempotent(t, mw, countingHandler(&calls), call)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a failed attempt must not leave the key reserved")
}

func TestIdempotency_RejectsKeyReuseOnOtherPath(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	calls := 0

	_, err := runIdempotent(t, mw, countingHandler(&calls), idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"})
	require.NoError(t, err)
	_, err = runIdempotent(t, mw, countingHandler(&calls), idemCall{http.MethodPost, "/api/v1/invoices", "k1", "org-a"})

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected echo.HTTPError, got %T", err)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_DoesNotCacheErrors(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	calls := 0
	failing := func(c echo.Context) error {
		calls++
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	}
	call := idemCall{http.MethodPost, "/api/v1/requests", "k1", "org-a"}

	_, err := runIdempotent(t, mw, failing, call)
	require.Error(t, err)
	_, err = runIdempotent(t, mw, failing, call)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_PassThrough(t *testing.T) {
	mw := Idempotency(NewMemoryIdempotencyStore(time.Hour))
	calls := 0

	for i := 0; i < 2; i++ {
		_, err := runIdempotent(t, mw, countingHandler(&calls), idemCall{http.MethodPost, "/api/v1/requests", "", "org-a"})
		require.NoError(t, err)
		_, err = runIdempotent(t, mw, countingHandler(&calls), idemCall{http.MethodGet, "/api/v1/requests", "k2", "org-a"})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, calls)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	s.Set("a", &CachedResponse{Method: http.MethodPost, Path: "/x", StatusCode: 201, Body: []byte("x")})
	_, ok := s.Get("a")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.EvictExpired())
}

func TestMemoryIdempotencyStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Hour)
	s.Set("a", &CachedResponse{Body: []byte("abc")})

	got, _ := s.Get("a")
	got.Body[0] = 'z'
	again, _ := s.Get("a")
	assert.Equal(t, "abc", string(again.Body))
}
