// Package session establishes who is making a request. Identities arrive as
// HS256 tokens, either in the session cookie or an Authorization header.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feedesk/internal/core"
	"feedesk/internal/log"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "feedesk"

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
)

type Claims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret []byte
	cookie string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret, cookie string, ttl time.Duration) *Manager {
	if cookie == "" {
		cookie = "feedesk_session"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		cookie: cookie,
		ttl:    ttl,
		now:    time.Now,
	}
}

// CookieName is the cookie the browser carries the token in.
func (m *Manager) CookieName() string {
	return m.cookie
}

// Issue signs a token for id that expires after the configured TTL.
func (m *Manager) Issue(id core.Identity) (string, error) {
	if id.UserID <= 0 {
		return "", fmt.Errorf("issue token: invalid user id %d", id.UserID)
	}
	now := m.now()
	claims := &Claims{
		UserID: id.UserID,
		Role:   id.Role,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks the signature, issuer and expiry of token and returns the
// identity it carries.
func (m *Manager) Verify(token string) (core.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return core.Identity{}, ErrNoToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 {
		return core.Identity{}, ErrInvalidToken
	}
	return core.Identity{UserID: claims.UserID, Role: claims.Role, Name: claims.Name}, nil
}

// tokenFromRequest prefers the Authorization header over the cookie.
func (m *Manager) tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(m.cookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware attaches the caller's identity to the request context when the
// request carries a valid token. Requests without one pass through
// anonymously; RequireRole decides what they may reach.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.Verify(token)
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentSession).DebugContext(r.Context(),
				"Ignoring session token", log.FieldError, err, log.FieldErrorType, log.ErrorTypeAuth)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
	})
}

// RequireRole rejects requests whose identity is missing (401) or has a
// different role (403).
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		if id.Role != role {
			log.FromContext(r.Context()).WithComponent(log.ComponentSession).WarnContext(r.Context(),
				"Role not permitted", log.FieldUserID, id.UserID, log.FieldRole, id.Role, log.FieldErrorType, log.ErrorTypeAuth)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey struct{}

func NewContext(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached by Middleware.
func FromContext(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(core.Identity)
	return id, ok && id.UserID > 0
}
