package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// Credentials hold the bearer token of one session. The token is issued and
// verified by the backend; locally its exp claim is only read so an expired
// session fails before any request is sent. Opaque tokens are never expired
// locally.
type Credentials struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewCredentials(token string) *Credentials {
	c := &Credentials{now: time.Now}
	c.Rotate(token)
	return c
}

// Token implements backend.TokenSource.
func (c *Credentials) Token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", fmt.Errorf("no credentials: %w", apperr.ErrSessionExpired)
	}
	if !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt) {
		return "", fmt.Errorf("token expired at %s: %w", c.expiresAt.Format(time.RFC3339), apperr.ErrSessionExpired)
	}
	return c.token, nil
}

func (c *Credentials) Expired() bool {
	_, err := c.Token()
	return err != nil
}

// Rotate replaces the token, e.g. after re-authentication.
func (c *Credentials) Rotate(token string) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	expiresAt := tokenExpiry(token)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = expiresAt
}

func tokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
