package federation

import (
	"context"
	"fmt"
	"strings"

	"github.com/idbridge/idbridge/internal/observability/logger"
)

// SchemeInfo describes one registered authentication scheme.
type SchemeInfo struct {
	Name        string
	DisplayName string
}

type scheme struct {
	name        string
	displayName string
	client      Client
}

// Exchange dispatches challenges and callbacks to the Client registered for
// an authentication type, and owns the state round-trip. Scheme order is the
// registration order; ListSchemes reports it unchanged.
type Exchange struct {
	codec   *StateCodec
	order   []string
	schemes map[string]scheme
}

// NewExchange creates an empty exchange using the given state codec.
func NewExchange(codec *StateCodec) *Exchange {
	return &Exchange{
		codec:   codec,
		schemes: make(map[string]scheme),
	}
}

// Register adds a scheme. Registration happens during wiring, before any
// request runs; the exchange is read-only afterwards.
func (e *Exchange) Register(name, displayName string, c Client) {
	key := strings.ToLower(name)
	if _, dup := e.schemes[key]; !dup {
		e.order = append(e.order, key)
	}
	e.schemes[key] = scheme{name: name, displayName: displayName, client: c}
}

// Schemes returns the registered schemes in registration order.
func (e *Exchange) Schemes() []SchemeInfo {
	out := make([]SchemeInfo, 0, len(e.order))
	for _, key := range e.order {
		s := e.schemes[key]
		out = append(out, SchemeInfo{Name: s.name, DisplayName: s.displayName})
	}
	return out
}

func (e *Exchange) lookup(name string) (scheme, bool) {
	s, ok := e.schemes[strings.ToLower(name)]
	return s, ok
}

// BeginChallenge signs the round-trip state and returns the provider
// authorization URL for the scheme. The returnURL is embedded as-is; the
// caller is responsible for having normalized it.
func (e *Exchange) BeginChallenge(ctx context.Context, provider, returnURL string) (string, error) {
	s, ok := e.lookup(provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	nonce, err := NewNonce()
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrExchangeFailed, err)
	}

	state, err := e.codec.Sign(StateClaims{
		Provider:  s.name,
		ReturnURL: returnURL,
		Nonce:     nonce,
	})
	if err != nil {
		return "", fmt.Errorf("%w: sign state: %v", ErrExchangeFailed, err)
	}

	authURL, err := s.client.BeginChallenge(ctx, state, nonce)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	logger.From(ctx).Debug("challenge built",
		logger.Component("federation"),
		logger.Provider(s.name),
	)
	return authURL, nil
}

// CompleteCallback verifies the round-trip state and resolves the external
// identity via the scheme client. The parsed state is returned so the caller
// recovers the returnURL it supplied at BeginChallenge.
func (e *Exchange) CompleteCallback(ctx context.Context, provider, state, code string) (*ExternalIdentity, *StateClaims, error) {
	s, ok := e.lookup(provider)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	claims, err := e.codec.Parse(state)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if !strings.EqualFold(claims.Provider, s.name) {
		return nil, nil, fmt.Errorf("%w: state bound to %q, callback for %q", ErrExchangeFailed, claims.Provider, s.name)
	}

	identity, err := s.client.CompleteCallback(ctx, code, claims.Nonce)
	if err != nil {
		return nil, nil, err
	}
	identity.ProviderID = s.name

	logger.From(ctx).Debug("callback resolved",
		logger.Component("federation"),
		logger.Provider(s.name),
		logger.Subject(identity.SubjectID),
	)
	return identity, claims, nil
}

// SignOutURL returns the provider's RP-initiated logout URL, or "" when the
// scheme does not support one.
func (e *Exchange) SignOutURL(provider string) string {
	s, ok := e.lookup(provider)
	if !ok {
		return ""
	}
	if so, ok := s.client.(SignOutURLer); ok {
		return so.SignOutURL()
	}
	return ""
}
