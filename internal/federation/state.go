package federation

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// StateClaims is the state that must survive the redirect round-trip:
// which provider we challenged and where the user goes afterwards.
type StateClaims struct {
	Provider  string
	ReturnURL string
	Nonce     string
}

// stateAudience is the expected audience for sign-in state tokens.
const stateAudience = "signin-state"

// State errors.
var (
	ErrStateInvalid = errors.New("invalid state token")
	ErrStateExpired = errors.New("state token expired")
)

// StateCodec signs and verifies the state JWT (HS256 under a shared secret).
// The token is opaque to everything between Sign and Parse.
type StateCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewStateCodec creates a codec. A non-positive ttl defaults to 10 minutes,
// generous enough for a user to finish a provider consent screen.
func NewStateCodec(secret []byte, issuer string, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateCodec{secret: secret, issuer: issuer, ttl: ttl}
}

// Sign produces the signed state token.
func (c *StateCodec) Sign(claims StateClaims) (string, error) {
	now := time.Now().UTC()
	mapClaims := jwtv5.MapClaims{
		"iss":      c.issuer,
		"aud":      stateAudience,
		"exp":      now.Add(c.ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"provider": claims.Provider,
		"nonce":    claims.Nonce,
	}
	if claims.ReturnURL != "" {
		mapClaims["redir"] = claims.ReturnURL
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, mapClaims)
	return tk.SignedString(c.secret)
}

// Parse validates a state token and extracts the claims.
func (c *StateCodec) Parse(tokenString string) (*StateClaims, error) {
	tk, err := jwtv5.Parse(tokenString,
		func(t *jwtv5.Token) (any, error) { return c.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(c.issuer),
		jwtv5.WithAudience(stateAudience),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrStateInvalid
	}
	if !tk.Valid {
		return nil, ErrStateInvalid
	}

	mapClaims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrStateInvalid
	}

	claims := &StateClaims{
		Provider:  getString(mapClaims, "provider"),
		ReturnURL: getString(mapClaims, "redir"),
		Nonce:     getString(mapClaims, "nonce"),
	}
	if claims.Provider == "" || claims.Nonce == "" {
		return nil, ErrStateInvalid
	}
	return claims, nil
}

// NewNonce generates a random base64url-encoded nonce.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
