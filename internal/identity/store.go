// Package identity holds local accounts and their links to external
// provider identities, and resolves an external identity to exactly one
// local account.
package identity

import (
	"context"
	"errors"
	"time"
)

// Account is a local account. Every account here originated from an
// external sign-in; there is no password credential.
type Account struct {
	ID         string
	Email      string
	Name       string
	PictureURL string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Link ties an account to one external identity. The (Provider, Subject)
// pair is unique store-wide.
type Link struct {
	Provider  string
	Subject   string
	AccountID string
	CreatedAt time.Time
}

// NewAccount is the input for creating an account together with its first
// external link in one atomic operation.
type NewAccount struct {
	Email      string
	Name       string
	PictureURL string
	Provider   string
	Subject    string
}

// Store errors.
var (
	ErrNotFound = errors.New("identity: not found")

	// ErrDuplicateLink means the (provider, subject) pair is already bound
	// to some account. Raised by the storage uniqueness guarantee, which is
	// what keeps concurrent first sign-ins from minting two accounts.
	ErrDuplicateLink = errors.New("identity: external link already exists")

	// ErrDuplicateEmail means the email is already taken by another account.
	ErrDuplicateEmail = errors.New("identity: email already exists")
)

// AccountStore is the persistence contract for accounts and links.
type AccountStore interface {
	// FindByLink resolves the account bound to (provider, subject).
	// Returns ErrNotFound when no link exists.
	FindByLink(ctx context.Context, provider, subject string) (*Account, error)

	// FindByEmail resolves an account by email, case-insensitively.
	// Returns ErrNotFound when no account has the email.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// CreateWithLink creates the account and its external link atomically.
	// Returns ErrDuplicateLink or ErrDuplicateEmail on uniqueness
	// violations; in neither case is a partial account left behind.
	CreateWithLink(ctx context.Context, in NewAccount) (*Account, error)

	// TouchLastSeen records a successful sign-in on the account.
	TouchLastSeen(ctx context.Context, accountID string) error
}
