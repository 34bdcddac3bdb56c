package session_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idbridge/idbridge/internal/cache"
	"github.com/idbridge/idbridge/internal/session"
)

func newAuthority(t *testing.T, ttl time.Duration) *session.CacheAuthority {
	t.Helper()
	c := cache.NewMemory(cache.Config{Prefix: "test"})
	t.Cleanup(func() { _ = c.Close() })
	return session.NewCacheAuthority(c, session.Config{TTL: ttl})
}

func TestEstablishAndCurrent(t *testing.T) {
	a := newAuthority(t, time.Minute)
	ctx := context.Background()

	s, err := a.Establish(ctx, "acc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "acc-1", s.AccountID)
	assert.True(t, s.ExpiresAt.After(time.Now()))

	accountID, err := a.Current(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)
}

func TestCurrentUnknownToken(t *testing.T) {
	a := newAuthority(t, time.Minute)

	_, err := a.Current(context.Background(), "never-issued")
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = a.Current(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestTerminateIsIdempotent(t *testing.T) {
	a := newAuthority(t, time.Minute)
	ctx := context.Background()

	s, err := a.Establish(ctx, "acc-1")
	require.NoError(t, err)

	require.NoError(t, a.Terminate(ctx, s.Token))
	_, err = a.Current(ctx, s.Token)
	assert.ErrorIs(t, err, session.ErrNoSession)

	// Second terminate, and terminating garbage, both succeed.
	require.NoError(t, a.Terminate(ctx, s.Token))
	require.NoError(t, a.Terminate(ctx, "nonsense"))
	require.NoError(t, a.Terminate(ctx, ""))
}

func TestTokensAreUnique(t *testing.T) {
	a := newAuthority(t, time.Minute)
	ctx := context.Background()

	s1, err := a.Establish(ctx, "acc-1")
	require.NoError(t, err)
	s2, err := a.Establish(ctx, "acc-1")
	require.NoError(t, err)
	assert.NotEqual(t, s1.Token, s2.Token)

	// Terminating one leaves the other alive.
	require.NoError(t, a.Terminate(ctx, s1.Token))
	accountID, err := a.Current(ctx, s2.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)
}

func TestCookieAttributes(t *testing.T) {
	a := newAuthority(t, time.Hour)

	s, err := a.Establish(context.Background(), "acc-1")
	require.NoError(t, err)

	c := a.Cookie(s)
	assert.Equal(t, "idbridge_session", c.Name)
	assert.Equal(t, s.Token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Greater(t, c.MaxAge, 0)

	del := a.DeletionCookie()
	assert.Equal(t, c.Name, del.Name)
	assert.Empty(t, del.Value)
	assert.Equal(t, -1, del.MaxAge)
}
