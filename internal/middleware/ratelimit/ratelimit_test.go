package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	rl.now = c.now
	return rl, c
}

func TestLimiter_Allow(t *testing.T) {
	rl, c := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("7"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, retry := rl.Allow("7")
	if ok {
		t.Fatal("fourth request in the window should be refused")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry-after %v", retry)
	}

	if ok, _ := rl.Allow("8"); !ok {
		t.Fatal("other keys have their own budget")
	}

	c.advance(time.Minute)
	if ok, _ := rl.Allow("7"); !ok {
		t.Fatal("a new window should reset the budget")
	}
	if rl.Hits() != 1 {
		t.Fatalf("Hits() = %d, want 1", rl.Hits())
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, c := newTestLimiter(3)
	defer rl.Stop()

	rl.Allow("7")
	c.advance(11 * time.Minute)
	rl.Allow("8")
	rl.cleanupStaleEntries()

	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("ActiveClients() = %d, want 1", got)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-Key") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		if key != "" {
			req.Header.Set("X-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("7"); rec.Code != http.StatusNoContent {
		t.Fatalf("first request status %d", rec.Code)
	}
	rec := do("7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	for i := 0; i < 3; i++ {
		if rec := do(""); rec.Code != http.StatusNoContent {
			t.Fatalf("unkeyed request should bypass the limiter, got %d", rec.Code)
		}
	}
}
