// Package signin implements the external sign-in handshake: challenge,
// callback, sign-out and the provider listing.
package signin

import (
	"context"

	"github.com/idbridge/idbridge/internal/federation"
	"github.com/idbridge/idbridge/internal/identity"
	"github.com/idbridge/idbridge/internal/session"
)

// ProviderInfo is the public listing entry for one provider.
type ProviderInfo struct {
	AuthenticationType string `json:"authenticationType"`
	DisplayName        string `json:"displayName"`
	LogoURL            string `json:"logoUrl,omitempty"`
}

// BeginResult is the outcome of starting a challenge.
type BeginResult struct {
	// RedirectURL is the provider authorization URL the browser goes to.
	RedirectURL string
}

// CallbackResult is the outcome of a successful callback.
type CallbackResult struct {
	Session    *session.Session
	AccountID  string
	NewAccount bool
	// ReturnURL is where the browser goes after the cookie is set. Always a
	// safe relative path.
	ReturnURL string
}

// SignOutResult is the outcome of a sign-out.
type SignOutResult struct {
	// RedirectURL is where the browser goes next. Either the local
	// returnURL or the provider's RP-initiated logout URL.
	RedirectURL string
	// HadSession reports whether an authenticated session was terminated.
	HadSession bool
}

// Service is the application-level contract consumed by the controllers.
type Service interface {
	// Begin validates the provider and returnURL and produces the provider
	// redirect. An unsafe returnURL is silently replaced by the home path.
	Begin(ctx context.Context, provider, returnURL string) (*BeginResult, error)

	// Callback completes the handshake: identity resolution, account
	// linking, session establishment, event publication, in that order.
	Callback(ctx context.Context, provider, state, code string) (*CallbackResult, error)

	// SignOut terminates the session bound to token, then announces the
	// logout. Idempotent; an absent session is not an error.
	SignOut(ctx context.Context, token, returnURL, provider string) (*SignOutResult, error)

	// Providers lists the registered schemes in registration order,
	// decorated with display metadata where configured.
	Providers(ctx context.Context) []ProviderInfo
}

// ExchangeClient is the slice of the federation exchange the orchestrator
// needs.
type ExchangeClient interface {
	BeginChallenge(ctx context.Context, provider, returnURL string) (string, error)
	CompleteCallback(ctx context.Context, provider, state, code string) (*federation.ExternalIdentity, *federation.StateClaims, error)
	Schemes() []federation.SchemeInfo
	SignOutURL(provider string) string
}

// IdentityLinker resolves external identities to local accounts.
type IdentityLinker interface {
	ResolveOrCreate(ctx context.Context, ext *federation.ExternalIdentity) (*identity.Account, bool, error)
}
