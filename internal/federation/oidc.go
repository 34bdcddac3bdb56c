package federation

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// OIDCConfig configures a standards-compliant OIDC provider (Google, Azure AD,
// Okta, any issuer exposing discovery).
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OIDCClient implements Client against any OIDC issuer. Discovery is lazy,
// cached for the process lifetime, and deduplicated across concurrent
// requests with singleflight.
type OIDCClient struct {
	cfg OIDCConfig

	mu       sync.RWMutex
	provider *gooidc.Provider
	endSess  string

	group singleflight.Group
}

// NewOIDC creates an OIDC client. No network traffic happens until the first
// challenge or callback.
func NewOIDC(cfg OIDCConfig) *OIDCClient {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	return &OIDCClient{cfg: cfg}
}

func (c *OIDCClient) discover(ctx context.Context) (*gooidc.Provider, error) {
	c.mu.RLock()
	p := c.provider
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	v, err, _ := c.group.Do("discovery", func() (any, error) {
		c.mu.RLock()
		cached := c.provider
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		p, err := gooidc.NewProvider(ctx, c.cfg.Issuer)
		if err != nil {
			return nil, err
		}

		var extra struct {
			EndSessionEndpoint string `json:"end_session_endpoint"`
		}
		_ = p.Claims(&extra)

		c.mu.Lock()
		c.provider = p
		c.endSess = extra.EndSessionEndpoint
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", c.cfg.Issuer, err)
	}
	return v.(*gooidc.Provider), nil
}

func (c *OIDCClient) oauth2Config(p *gooidc.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Endpoint:     p.Endpoint(),
		Scopes:       c.cfg.Scopes,
	}
}

// BeginChallenge builds the authorization URL with state and nonce.
func (c *OIDCClient) BeginChallenge(ctx context.Context, state, nonce string) (string, error) {
	p, err := c.discover(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return c.oauth2Config(p).AuthCodeURL(state, gooidc.Nonce(nonce)), nil
}

// CompleteCallback exchanges the code, verifies the ID token against the
// issuer's keys and the nonce, and maps the claims.
func (c *OIDCClient) CompleteCallback(ctx context.Context, code, nonce string) (*ExternalIdentity, error) {
	p, err := c.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	tok, err := c.oauth2Config(p).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrExchangeFailed, err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: token response lacks id_token", ErrExchangeFailed)
	}

	idToken, err := p.Verifier(&gooidc.Config{ClientID: c.cfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityInvalid, err)
	}
	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrIdentityInvalid)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrIdentityInvalid, err)
	}

	return &ExternalIdentity{
		SubjectID: idToken.Subject,
		Claims: map[string]string{
			ClaimEmail:         claims.Email,
			ClaimEmailVerified: strconv.FormatBool(claims.EmailVerified),
			ClaimName:          claims.Name,
			ClaimGivenName:     claims.GivenName,
			ClaimFamilyName:    claims.FamilyName,
			ClaimPicture:       claims.Picture,
		},
	}, nil
}

// SignOutURL returns the issuer's end_session_endpoint when discovery has run
// and the issuer advertises one.
func (c *OIDCClient) SignOutURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endSess
}
