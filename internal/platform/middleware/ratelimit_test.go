package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serve(h echo.HandlerFunc, ip string, org string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if org != "" {
		c.Set("org_id", org)
	}
	return rec, h(c)
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := serve(h, "10.0.0.1", "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "5" {
			t.Errorf("request %d: expected X-RateLimit-Limit 5, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := serve(h, "10.0.0.1", ""); err != nil {
			t.Fatalf("request %d should pass: %v", i+1, err)
		}
	}
	rec, err := serve(h, "10.0.0.1", "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})(okHandler)

	if _, err := serve(h, "10.0.0.1", ""); err != nil {
		t.Fatalf("first client: %v", err)
	}
	if _, err := serve(h, "10.0.0.2", ""); err != nil {
		t.Errorf("second client should have its own bucket: %v", err)
	}
	if _, err := serve(h, "10.0.0.1", "org-a"); err != nil {
		t.Errorf("organization-scoped key should have its own bucket: %v", err)
	}
	if _, err := serve(h, "10.0.0.1", ""); err == nil {
		t.Error("expected first client to be limited")
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 3})
	h := rl.Middleware()(okHandler)

	_, _ = serve(h, "10.0.0.1", "")
	rl.bucket("10.0.0.9")

	if remaining := rl.Sweep(); remaining != 1 {
		t.Errorf("expected only the used bucket to survive, got %d", remaining)
	}
}

func TestNewRateLimiter_FallsBackToDefaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	if rl.cfg != DefaultRateLimitConfig() {
		t.Errorf("expected defaults, got %+v", rl.cfg)
	}
}
