// Package federation executes the provider side of the external sign-in
// handshake: building the authorization redirect and resolving the identity
// carried by the provider's callback.
//
// Each provider is a Client implementation selected by authentication type;
// there is no shared provider base type. The state that survives the redirect
// round-trip is an explicit signed token produced here; callers thread it
// through without inspecting it.
package federation

import (
	"context"
	"errors"
)

// Well-known claim keys on ExternalIdentity.Claims.
const (
	ClaimEmail         = "email"
	ClaimEmailVerified = "email_verified"
	ClaimName          = "name"
	ClaimGivenName     = "given_name"
	ClaimFamilyName    = "family_name"
	ClaimPicture       = "picture"
)

// ExternalIdentity is the provider-resolved identity of the end user.
// SubjectID is stable per provider but not globally unique across providers.
type ExternalIdentity struct {
	ProviderID string
	SubjectID  string
	Claims     map[string]string
}

// Email returns the email claim, or "".
func (id *ExternalIdentity) Email() string { return id.Claims[ClaimEmail] }

// EmailVerified reports whether the provider vouched for the email.
func (id *ExternalIdentity) EmailVerified() bool { return id.Claims[ClaimEmailVerified] == "true" }

// Client is the per-provider capability to run one challenge/callback pair.
type Client interface {
	// BeginChallenge returns the provider authorization URL carrying the
	// opaque state and, for OIDC providers, the nonce.
	BeginChallenge(ctx context.Context, state, nonce string) (string, error)

	// CompleteCallback exchanges the authorization code and resolves the
	// external identity, verifying the nonce where the protocol supports it.
	CompleteCallback(ctx context.Context, code, nonce string) (*ExternalIdentity, error)
}

// SignOutURLer is implemented by providers that support RP-initiated logout.
type SignOutURLer interface {
	SignOutURL() string
}

// Exchange errors.
var (
	// ErrUnknownProvider means the authentication type matches no
	// registered scheme. This check is authoritative; callers need not
	// pre-validate.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrExchangeFailed covers everything that kills a handshake on the
	// provider side: denied consent, expired or mismatched state, code
	// exchange failures, network errors, timeouts.
	ErrExchangeFailed = errors.New("provider exchange failed")

	// ErrIdentityInvalid means the provider answered but the identity
	// proof did not verify (bad signature, nonce mismatch, wrong audience).
	ErrIdentityInvalid = errors.New("provider identity invalid")
)
