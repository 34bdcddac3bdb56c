package signin

import (
	"context"
	"errors"
	"fmt"

	"github.com/idbridge/idbridge/internal/events"
	"github.com/idbridge/idbridge/internal/federation"
	"github.com/idbridge/idbridge/internal/identity"
	"github.com/idbridge/idbridge/internal/metrics"
	"github.com/idbridge/idbridge/internal/observability/logger"
	"github.com/idbridge/idbridge/internal/providers"
	"github.com/idbridge/idbridge/internal/session"
)

// Orchestrator is the Service implementation. It owns the ordering rules of
// the handshake; the federation, identity and session layers stay oblivious
// of each other.
type Orchestrator struct {
	exchange ExchangeClient
	linker   IdentityLinker
	sessions session.Authority
	bus      events.Publisher
	registry *providers.Registry
	homePath string
}

func NewOrchestrator(
	exchange ExchangeClient,
	linker IdentityLinker,
	sessions session.Authority,
	bus events.Publisher,
	registry *providers.Registry,
	homePath string,
) *Orchestrator {
	if homePath == "" {
		homePath = "/"
	}
	return &Orchestrator{
		exchange: exchange,
		linker:   linker,
		sessions: sessions,
		bus:      bus,
		registry: registry,
		homePath: homePath,
	}
}

func (o *Orchestrator) Begin(ctx context.Context, provider, returnURL string) (*BeginResult, error) {
	safeURL, replaced := NormalizeReturnURL(returnURL, o.homePath)
	if replaced {
		metrics.ObserveOpenRedirectRejected()
		logger.From(ctx).Warn("return url rejected",
			logger.Layer("signin"),
			logger.Provider(provider),
			logger.ReturnURL(returnURL),
		)
	}

	redirectURL, err := o.exchange.BeginChallenge(ctx, provider, safeURL)
	if err != nil {
		return nil, err
	}

	metrics.ObserveChallenge(provider)
	return &BeginResult{RedirectURL: redirectURL}, nil
}

func (o *Orchestrator) Callback(ctx context.Context, provider, state, code string) (*CallbackResult, error) {
	ext, claims, err := o.exchange.CompleteCallback(ctx, provider, state, code)
	if err != nil {
		metrics.ObserveAttempt(provider, callbackFailureResult(err))
		return nil, err
	}

	// The state was minted by Begin from an already-normalized URL, but the
	// guard re-runs here so a forged or stale state cannot smuggle one in.
	returnURL, replaced := NormalizeReturnURL(claims.ReturnURL, o.homePath)
	if replaced {
		metrics.ObserveOpenRedirectRejected()
	}

	account, created, err := o.linker.ResolveOrCreate(ctx, ext)
	if err != nil {
		metrics.ObserveAttempt(ext.ProviderID, callbackFailureResult(err))
		return nil, err
	}

	sess, err := o.sessions.Establish(ctx, account.ID)
	if err != nil {
		metrics.ObserveAttempt(ext.ProviderID, metrics.ResultError)
		return nil, fmt.Errorf("establish session: %w", err)
	}

	// The event goes out only once the session exists; observers may rely
	// on the account being signed in.
	_ = o.bus.Publish(ctx, events.UserLoginEvent{
		AccountID:  account.ID,
		Provider:   ext.ProviderID,
		Email:      account.Email,
		Name:       account.Name,
		NewAccount: created,
	})

	metrics.ObserveAttempt(ext.ProviderID, metrics.ResultSuccess)
	metrics.ObserveSessionEstablished()
	if created {
		metrics.ObserveAccountCreated(ext.ProviderID)
	}

	logger.From(ctx).Info("sign-in completed",
		logger.Layer("signin"),
		logger.Provider(ext.ProviderID),
		logger.AccountID(account.ID),
		logger.Bool("new_account", created),
	)

	return &CallbackResult{
		Session:    sess,
		AccountID:  account.ID,
		NewAccount: created,
		ReturnURL:  returnURL,
	}, nil
}

func (o *Orchestrator) SignOut(ctx context.Context, token, returnURL, provider string) (*SignOutResult, error) {
	safeURL, replaced := NormalizeReturnURL(returnURL, o.homePath)
	if replaced {
		metrics.ObserveOpenRedirectRejected()
	}

	accountID, err := o.sessions.Current(ctx, token)
	hadSession := err == nil
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	// Terminate before announcing. A logout observer must never find the
	// session still alive.
	if err := o.sessions.Terminate(ctx, token); err != nil {
		return nil, fmt.Errorf("terminate session: %w", err)
	}

	if hadSession {
		_ = o.bus.Publish(ctx, events.UserLogoutEvent{AccountID: accountID})
		logger.From(ctx).Info("signed out",
			logger.Layer("signin"),
			logger.AccountID(accountID),
		)
	}

	redirectURL := safeURL
	if provider != "" {
		if u := o.exchange.SignOutURL(provider); u != "" {
			redirectURL = u
		}
	}

	return &SignOutResult{RedirectURL: redirectURL, HadSession: hadSession}, nil
}

// Providers joins the registered schemes with the display registry. Scheme
// order rules; registry entries without a scheme never show up.
func (o *Orchestrator) Providers(_ context.Context) []ProviderInfo {
	schemes := o.exchange.Schemes()
	out := make([]ProviderInfo, 0, len(schemes))
	for _, s := range schemes {
		info := ProviderInfo{
			AuthenticationType: s.Name,
			DisplayName:        s.DisplayName,
		}
		if p, ok := o.registry.Lookup(s.Name); ok {
			if p.DisplayName != "" {
				info.DisplayName = p.DisplayName
			}
			info.LogoURL = p.LogoURL
		}
		if info.DisplayName == "" {
			info.DisplayName = s.Name
		}
		out = append(out, info)
	}
	return out
}

func callbackFailureResult(err error) string {
	switch {
	case errors.Is(err, federation.ErrUnknownProvider):
		return metrics.ResultUnknownProvider
	case errors.Is(err, federation.ErrExchangeFailed), errors.Is(err, federation.ErrIdentityInvalid):
		return metrics.ResultExchangeFailed
	case errors.Is(err, identity.ErrLinkageConflict):
		return metrics.ResultLinkageConflict
	case errors.Is(err, identity.ErrAccountIncomplete):
		return metrics.ResultCreationConflict
	default:
		return metrics.ResultError
	}
}
