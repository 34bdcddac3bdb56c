// Package pg implements identity.AccountStore on Postgres via pgx.
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idbridge/idbridge/internal/identity"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

const (
	constraintLinkUnique  = "external_identity_provider_subject_key"
	constraintEmailUnique = "account_email_key"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

// New opens the pool. The startup ping is non-blocking: a temporarily down
// database logs a warning instead of failing boot.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		logger.L().Warn("postgres startup ping failed", logger.Err(err))
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Pool exposes the underlying pool for metrics and migrations.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const accountColumns = `a.id, a.email, a.name, a.picture_url, a.created_at, a.last_seen_at`

func scanAccount(row pgx.Row) (*identity.Account, error) {
	var a identity.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PictureURL, &a.CreatedAt, &a.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) FindByLink(ctx context.Context, provider, subject string) (*identity.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM account a
		JOIN external_identity e ON e.account_id = a.id
		WHERE lower(e.provider) = lower($1) AND e.subject = $2`,
		provider, subject)
	return scanAccount(row)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM account a
		WHERE a.email = lower($1)`,
		email)
	return scanAccount(row)
}

// CreateWithLink inserts the account and the link in one transaction.
// Unique violations map onto the store sentinel errors by constraint name.
func (s *Store) CreateWithLink(ctx context.Context, in identity.NewAccount) (*identity.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	now := time.Now().UTC()

	row := tx.QueryRow(ctx, `
		INSERT INTO account (id, email, name, picture_url, created_at, last_seen_at)
		VALUES ($1, lower($2), $3, $4, $5, $5)
		RETURNING id, email, name, picture_url, created_at, last_seen_at`,
		id, strings.TrimSpace(in.Email), in.Name, in.PictureURL, now)

	var a identity.Account
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PictureURL, &a.CreatedAt, &a.LastSeenAt); err != nil {
		return nil, mapPgError(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO external_identity (provider, subject, account_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		in.Provider, in.Subject, a.ID, now)
	if err != nil {
		return nil, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, accountID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE account SET last_seen_at = $2 WHERE id = $1`,
		accountID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		switch pgErr.ConstraintName {
		case constraintLinkUnique:
			return identity.ErrDuplicateLink
		case constraintEmailUnique:
			return identity.ErrDuplicateEmail
		}
		return identity.ErrDuplicateLink
	}
	return err
}
