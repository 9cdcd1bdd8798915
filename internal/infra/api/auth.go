package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/model"
)

// ===== Session/JWT primitives =====

// SessionClaims identify a signed-in community member. Tokens are minted by
// the site's login flow with the shared HS256 secret.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) UserID() string { return c.Subject }
func (c *SessionClaims) IsAdmin() bool  { return c.Role == string(model.RoleAdmin) }

type AuthManager struct {
	secret       []byte
	cookieName   string
	cookieDomain string
	secure       bool
	ttl          time.Duration
}

func NewAuthManager(cfg config.AuthConfig, ttl time.Duration) *AuthManager {
	return &AuthManager{
		secret:       []byte(cfg.JWTSecret),
		cookieName:   cfg.CookieName,
		cookieDomain: cfg.CookieDomain,
		secure:       cfg.SecureCookie,
		ttl:          ttl,
	}
}

// Mint signs a session for userID and, when w is non-nil, sets it as an
// HttpOnly cookie.
func (a *AuthManager) Mint(w http.ResponseWriter, userID string, role model.Role) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth: jwt secret not configured")
	}
	now := time.Now()
	claims := SessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   userID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", err
	}
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName,
			Value:    signed,
			Path:     "/",
			Domain:   a.cookieDomain,
			MaxAge:   int(a.ttl.Seconds()),
			HttpOnly: true,
			Secure:   a.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return signed, nil
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*SessionClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*SessionClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("auth: jwt secret not configured")
	}
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *SessionClaims {
	c, _ := ctx.Value(sessionKey{}).(*SessionClaims)
	return c
}

// RequireSession rejects requests without a valid session token.
func (a *AuthManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, claims)))
	})
}

// RequireAdmin additionally requires the admin role.
func (a *AuthManager) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
