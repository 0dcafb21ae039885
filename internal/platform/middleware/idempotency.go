package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotency-Replayed"

	DefaultIdempotencyTTL = 24 * time.Hour
)

// CachedResponse is a stored response for one idempotency key.
type CachedResponse struct {
	Method     string
	Path       string
	StatusCode int
	Headers    http.Header
	Body       []byte
	ExpiresAt  time.Time
}

// IdempotencyStore persists cached responses. Reserve marks a key as in
// flight and reports false while another request holds it; Release clears
// the mark. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	Get(key string) (*CachedResponse, bool)
	Set(key string, entry *CachedResponse)
	Reserve(key string) bool
	Release(key string)
}

// MemoryIdempotencyStore keeps responses in process memory until they expire.
type MemoryIdempotencyStore struct {
	mu       sync.RWMutex
	entries  map[string]*CachedResponse
	inFlight map[string]struct{}
	ttl      time.Duration
	nowFunc  func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &MemoryIdempotencyStore{
		entries:  make(map[string]*CachedResponse),
		inFlight: make(map[string]struct{}),
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

func (s *MemoryIdempotencyStore) Get(key string) (*CachedResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok || s.nowFunc().After(entry.ExpiresAt) {
		return nil, false
	}
	cp := *entry
	cp.Headers = entry.Headers.Clone()
	cp.Body = append([]byte(nil), entry.Body...)
	return &cp, true
}

func (s *MemoryIdempotencyStore) Set(key string, entry *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = s.nowFunc().Add(s.ttl)
	}
	cp.Headers = entry.Headers.Clone()
	cp.Body = append([]byte(nil), entry.Body...)
	s.entries[key] = &cp
}

func (s *MemoryIdempotencyStore) Reserve(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *MemoryIdempotencyStore) Release(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

// EvictExpired removes expired entries and returns how many were dropped.
func (s *MemoryIdempotencyStore) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	n := 0
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on POST, PUT and PATCH. Keys are scoped to the caller's
// organization and user. A duplicate arriving while the first request is
// still running gets 409. Reusing a key for a different method or path is
// rejected with 422. Error responses are not cached, so a failed call may
// be retried.
func Idempotency(store IdempotencyStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := c.Request().Method
			if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
				return next(c)
			}
			idempKey := c.Request().Header.Get(IdempotencyKeyHeader)
			if idempKey == "" {
				return next(c)
			}

			orgID, _ := c.Get("org_id").(string)
			userID, _ := c.Get("user_id").(string)
			storeKey := orgID + ":" + userID + ":" + idempKey
			path := c.Request().URL.Path

			if cached, ok := store.Get(storeKey); ok {
				return replay(c, cached, method, path)
			}
			if !store.Reserve(storeKey) {
				return echo.NewHTTPError(http.StatusConflict, apperr.Body{
					Code:    "idempotency_key_in_flight",
					Message: "a request with this idempotency key is still being processed",
				})
			}
			defer store.Release(storeKey)
			// The first request may have finished between Get and Reserve.
			if cached, ok := store.Get(storeKey); ok {
				return replay(c, cached, method, path)
			}

			origWriter := c.Response().Writer
			rec := &idempotencyRecorder{
				ResponseWriter: origWriter,
				body:           &bytes.Buffer{},
				statusCode:     http.StatusOK,
				headers:        make(http.Header),
			}
			c.Response().Writer = rec
			err := next(c)
			c.Response().Writer = origWriter
			if err != nil {
				return err
			}

			captured := rec.headers.Clone()
			if rec.statusCode < http.StatusBadRequest {
				store.Set(storeKey, &CachedResponse{
					Method:     method,
					Path:       path,
					StatusCode: rec.statusCode,
					Headers:    captured,
					Body:       rec.body.Bytes(),
				})
			}

			for k, vals := range captured {
				origWriter.Header()[k] = vals
			}
			origWriter.WriteHeader(rec.statusCode)
			_, err = origWriter.Write(rec.body.Bytes())
			return err
		}
	}
}

func replay(c echo.Context, cached *CachedResponse, method, path string) error {
	if cached.Method != method || cached.Path != path {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, apperr.Body{
			Code:    "idempotency_key_reused",
			Message: "idempotency key was already used for a different operation",
		})
	}
	resp := c.Response()
	for k, vals := range cached.Headers {
		resp.Header()[k] = vals
	}
	resp.Header().Set(IdempotencyReplayedHeader, "true")
	resp.WriteHeader(cached.StatusCode)
	_, err := resp.Write(cached.Body)
	return err
}

// idempotencyRecorder buffers status, headers and body written downstream.
type idempotencyRecorder struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	headers    http.Header
	wroteHead  bool
}

func (r *idempotencyRecorder) Header() http.Header {
	return r.headers
}

func (r *idempotencyRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.wroteHead = true
}

func (r *idempotencyRecorder) Write(b []byte) (int, error) {
	if !r.wroteHead {
		r.statusCode = http.StatusOK
		r.wroteHead = true
	}
	return r.body.Write(b)
}
