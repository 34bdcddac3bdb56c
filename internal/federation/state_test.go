package federation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCodecRoundTrip(t *testing.T) {
	codec := NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), "idbridge-test", 5*time.Minute)

	token, err := codec.Sign(StateClaims{
		Provider:  "Google",
		ReturnURL: "/account/orders",
		Nonce:     "n-123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "Google", got.Provider)
	assert.Equal(t, "/account/orders", got.ReturnURL)
	assert.Equal(t, "n-123", got.Nonce)
}

func TestStateCodecEmptyReturnURL(t *testing.T) {
	codec := NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), "idbridge-test", 5*time.Minute)

	token, err := codec.Sign(StateClaims{Provider: "GitHub", Nonce: "n-1"})
	require.NoError(t, err)

	got, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Empty(t, got.ReturnURL)
}

func TestStateCodecExpired(t *testing.T) {
	codec := NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), "idbridge-test", time.Minute)
	codec.ttl = -1 * time.Hour

	token, err := codec.Sign(StateClaims{Provider: "Google", Nonce: "n-1"})
	require.NoError(t, err)

	_, err = codec.Parse(token)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateCodecWrongSecret(t *testing.T) {
	signer := NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), "idbridge-test", time.Minute)
	verifier := NewStateCodec([]byte("ffffffffffffffffffffffffffffffff"), "idbridge-test", time.Minute)

	token, err := signer.Sign(StateClaims{Provider: "Google", Nonce: "n-1"})
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrStateInvalid)
}

func TestStateCodecGarbage(t *testing.T) {
	codec := NewStateCodec([]byte("0123456789abcdef0123456789abcdef"), "idbridge-test", time.Minute)

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := codec.Parse(bad)
		assert.ErrorIs(t, err, ErrStateInvalid, "input %q", bad)
	}
}

func TestNewNonceUnique(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
