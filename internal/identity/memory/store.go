// Package memory is an in-process AccountStore for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idbridge/idbridge/internal/identity"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]*identity.Account
	byEmail  map[string]string
	byLink   map[string]string
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*identity.Account),
		byEmail:  make(map[string]string),
		byLink:   make(map[string]string),
	}
}

func linkKey(provider, subject string) string {
	return strings.ToLower(provider) + "\x00" + subject
}

func (s *Store) FindByLink(_ context.Context, provider, subject string) (*identity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byLink[linkKey(provider, subject)]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*identity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) CreateWithLink(_ context.Context, in identity.NewAccount) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk := linkKey(in.Provider, in.Subject)
	if _, dup := s.byLink[lk]; dup {
		return nil, identity.ErrDuplicateLink
	}
	email := strings.ToLower(in.Email)
	if _, dup := s.byEmail[email]; dup {
		return nil, identity.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	acc := &identity.Account{
		ID:         uuid.NewString(),
		Email:      email,
		Name:       in.Name,
		PictureURL: in.PictureURL,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	s.accounts[acc.ID] = acc
	s.byEmail[email] = acc.ID
	s.byLink[lk] = acc.ID
	return cloneAccount(acc), nil
}

func (s *Store) TouchLastSeen(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return identity.ErrNotFound
	}
	acc.LastSeenAt = time.Now().UTC()
	return nil
}

func cloneAccount(a *identity.Account) *identity.Account {
	cp := *a
	return &cp
}
