// Package session issues and terminates browser sessions. Tokens are opaque
// random strings; the cache holds the server-side record keyed by the token
// hash, so a leaked cache dump never yields usable cookies.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/idbridge/idbridge/internal/cache"
	tokens "github.com/idbridge/idbridge/internal/security/token"
)

// ErrNoSession means the token is absent, expired or already terminated.
var ErrNoSession = errors.New("session: no active session")

const keyPrefix = "sid:"

// Config carries cookie and lifetime settings.
type Config struct {
	CookieName   string
	CookieDomain string
	CookiePath   string
	Secure       bool
	SameSite     http.SameSite
	TTL          time.Duration
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = "idbridge_session"
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	return c
}

// Session is an established session as handed to the transport layer.
type Session struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

type record struct {
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authority establishes, inspects and terminates sessions.
type Authority interface {
	Establish(ctx context.Context, accountID string) (*Session, error)
	Current(ctx context.Context, token string) (string, error)
	Terminate(ctx context.Context, token string) error
}

// CacheAuthority implements Authority on the cache client (memory or redis).
type CacheAuthority struct {
	cache cache.Client
	cfg   Config
}

func NewCacheAuthority(c cache.Client, cfg Config) *CacheAuthority {
	return &CacheAuthority{cache: c, cfg: cfg.withDefaults()}
}

func sessionKey(token string) string {
	return keyPrefix + tokens.SHA256Base64URL(token)
}

// Establish mints a fresh token and stores the record under its hash.
func (a *CacheAuthority) Establish(ctx context.Context, accountID string) (*Session, error) {
	token, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now().UTC()
	rec := record{
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.cfg.TTL),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, sessionKey(token), payload, a.cfg.TTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &Session{Token: token, AccountID: accountID, ExpiresAt: rec.ExpiresAt}, nil
}

// Current resolves the account bound to a token.
func (a *CacheAuthority) Current(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	payload, err := a.cache.Get(ctx, sessionKey(token))
	if err != nil {
		if cache.IsNotFound(err) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("load session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return "", ErrNoSession
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		_ = a.cache.Delete(ctx, sessionKey(token))
		return "", ErrNoSession
	}
	return rec.AccountID, nil
}

// Terminate removes the record. Terminating an unknown token is not an
// error; sign-out must be idempotent.
func (a *CacheAuthority) Terminate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := a.cache.Delete(ctx, sessionKey(token)); err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Cookie builds the Set-Cookie value for an established session.
func (a *CacheAuthority) Cookie(s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    s.Token,
		Path:     a.cfg.CookiePath,
		Domain:   a.cfg.CookieDomain,
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: a.cfg.SameSite,
	}
}

// DeletionCookie builds the cookie that clears the session client-side.
func (a *CacheAuthority) DeletionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     a.cfg.CookiePath,
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: a.cfg.SameSite,
	}
}

// CookieName exposes the configured cookie name for request parsing.
func (a *CacheAuthority) CookieName() string { return a.cfg.CookieName }
