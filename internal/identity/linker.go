package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/idbridge/idbridge/internal/federation"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

// Linker errors.
var (
	// ErrAccountIncomplete means the provider identity lacks the claims
	// needed to mint a local account (no email).
	ErrAccountIncomplete = errors.New("identity: external identity lacks required claims")

	// ErrLinkageConflict means the identity's email already belongs to a
	// different local account. The identity is never silently attached to
	// that account.
	ErrLinkageConflict = errors.New("identity: email belongs to another account")
)

// Linker resolves an external identity to a local account, creating the
// account on first sign-in.
type Linker struct {
	store AccountStore
}

func NewLinker(store AccountStore) *Linker {
	return &Linker{store: store}
}

// ResolveOrCreate maps the external identity to its local account. The
// second result reports whether the account was created by this call.
//
// Resolution is lookup-first: an existing (provider, subject) link wins
// regardless of what the claims say now. Creation races between replicas are
// settled by the store's link uniqueness; the loser retries as a lookup, so
// concurrent first sign-ins converge on one account.
func (l *Linker) ResolveOrCreate(ctx context.Context, ext *federation.ExternalIdentity) (*Account, bool, error) {
	log := logger.From(ctx).With(
		logger.Layer("identity"),
		logger.Provider(ext.ProviderID),
		logger.Subject(ext.SubjectID),
	)

	account, err := l.store.FindByLink(ctx, ext.ProviderID, ext.SubjectID)
	switch {
	case err == nil:
		if err := l.store.TouchLastSeen(ctx, account.ID); err != nil {
			log.Warn("touch last seen", logger.Err(err))
		}
		return account, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, fmt.Errorf("find by link: %w", err)
	}

	email := strings.TrimSpace(strings.ToLower(ext.Email()))
	if email == "" {
		return nil, false, ErrAccountIncomplete
	}

	if existing, err := l.store.FindByEmail(ctx, email); err == nil {
		log.Warn("email collision on first sign-in", logger.AccountID(existing.ID))
		return nil, false, ErrLinkageConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("find by email: %w", err)
	}

	account, err = l.store.CreateWithLink(ctx, NewAccount{
		Email:      email,
		Name:       ext.Claims[federation.ClaimName],
		PictureURL: ext.Claims[federation.ClaimPicture],
		Provider:   ext.ProviderID,
		Subject:    ext.SubjectID,
	})
	switch {
	case err == nil:
		log.Info("account created", logger.AccountID(account.ID))
		return account, true, nil
	case errors.Is(err, ErrDuplicateLink):
		// Lost a create race; the winner's account is authoritative.
		account, lookupErr := l.store.FindByLink(ctx, ext.ProviderID, ext.SubjectID)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("relookup after link conflict: %w", lookupErr)
		}
		return account, false, nil
	case errors.Is(err, ErrDuplicateEmail):
		return nil, false, ErrLinkageConflict
	default:
		return nil, false, fmt.Errorf("create account: %w", err)
	}
}
