package session

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedesk/internal/core"
	"feedesk/internal/log"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var anita = core.Identity{UserID: 7, Role: core.RoleCashier, Name: "Anita Rao"}

func TestIssueAndVerify(t *testing.T) {
	m := NewManager(testSecret, "", time.Hour)

	token, err := m.Issue(anita)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != anita {
		t.Fatalf("got %+v, want %+v", got, anita)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewManager(testSecret, "", time.Hour)
	valid, _ := m.Issue(anita)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA"

	expired := NewManager(testSecret, "", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue(anita)

	other, _ := NewManager(strings.Repeat("x", 32), "", time.Hour).Issue(anita)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 7, Role: core.RoleCashier})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 7, Role: core.RoleCashier,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, _ := foreign.SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrNoToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"tampered", tampered, ErrInvalidToken},
		{"expired", old, ErrInvalidToken},
		{"wrong secret", other, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"wrong issuer", foreignToken, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIssueRejectsAnonymous(t *testing.T) {
	if _, err := NewManager(testSecret, "", time.Hour).Issue(core.Identity{}); err == nil {
		t.Fatal("expected error for identity without user id")
	}
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	m := NewManager(testSecret, "desk", time.Hour)
	cashierToken, _ := m.Issue(anita)
	adminToken, _ := m.Issue(core.Identity{UserID: 1, Role: core.RoleAdmin, Name: "Head Office"})

	var seen core.Identity
	protected := m.Middleware(RequireRole(core.RoleCashier, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"anonymous", func(*http.Request) {}, http.StatusUnauthorized},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+adminToken) }, http.StatusForbidden},
		{"cashier bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+cashierToken) }, http.StatusNoContent},
		{"cashier cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "desk", Value: cashierToken}) }, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = core.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusNoContent && seen != anita {
				t.Fatalf("handler saw %+v", seen)
			}
		})
	}
}

func TestRequireRoleLogsForbidden(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	h := RequireRole(core.RoleCashier, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	ctx := NewContext(log.NewContext(r.Context(), logger), core.Identity{UserID: 9, Role: "viewer"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r.WithContext(ctx))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	out := buf.String()
	for _, want := range []string{"component=session", "user_id=9", "role=viewer", "error_type=auth_error"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
