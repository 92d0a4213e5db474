package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/repository"
)

const pendingTable = "finledger.pending_registrations"

const uniqueViolationCode = "23505"

// PendingRegistrationRepository implements port.PendingRegistrationStore
// using PostgreSQL.
type PendingRegistrationRepository struct {
	pool    pgPool
	builder squirrel.StatementBuilderType
}

// NewPendingRegistrationRepository constructs a pending registration repository.
func NewPendingRegistrationRepository(pool pgPool) *PendingRegistrationRepository {
	return &PendingRegistrationRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert creates or replaces the pending registration keyed by email.
func (r *PendingRegistrationRepository) Upsert(ctx context.Context, pending domain.PendingRegistration) error {
	stmt, args, err := r.builder.Insert(pendingTable).
		Columns(
			"email",
			"password_hash",
			"full_name",
			"base_currency",
			"role",
			"code_hash",
			"created_at",
			"expires_at",
		).
		Values(
			pending.Email,
			pending.PasswordHash,
			pending.FullName,
			pending.BaseCurrency,
			pending.Role,
			pending.CodeHash,
			pending.CreatedAt.UTC(),
			pending.ExpiresAt.UTC(),
		).
		Suffix(`ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			full_name = EXCLUDED.full_name,
			base_currency = EXCLUDED.base_currency,
			role = EXCLUDED.role,
			code_hash = EXCLUDED.code_hash,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert pending registration sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert pending registration: %w", err)
	}

	return nil
}

// GetByEmail retrieves the pending registration for a normalized email.
func (r *PendingRegistrationRepository) GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	stmt, args, err := r.builder.
		Select(
			"email",
			"password_hash",
			"full_name",
			"base_currency",
			"role",
			"code_hash",
			"created_at",
			"expires_at",
		).
		From(pendingTable).
		Where(squirrel.Eq{"email": domain.NormalizeEmail(email)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select pending registration sql: %w", err)
	}

	var pending domain.PendingRegistration
	err = r.pool.QueryRow(ctx, stmt, args...).Scan(
		&pending.Email,
		&pending.PasswordHash,
		&pending.FullName,
		&pending.BaseCurrency,
		&pending.Role,
		&pending.CodeHash,
		&pending.CreatedAt,
		&pending.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select pending registration: %w", err)
	}

	return &pending, nil
}

// Promote creates the user row and deletes the pending row in one
// transaction. A concurrent reader sees either the pending registration or
// the user, never both and never neither.
func (r *PendingRegistrationRepository) Promote(ctx context.Context, email string, user domain.User) error {
	email = domain.NormalizeEmail(email)

	return runInTx(ctx, r.pool, func(tx pgx.Tx) error {
		insert, args, err := r.builder.Insert(usersTable).
			Columns(userColumns...).
			Values(
				user.ID,
				user.Email,
				user.PasswordHash,
				user.FullName,
				user.BaseCurrency,
				user.Role,
				user.EmailVerified,
				user.TokenVersion,
				user.RegisteredAt.UTC(),
				user.LastPasswordChange.UTC(),
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert user sql: %w", err)
		}

		if _, err := tx.Exec(ctx, insert, args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
				return repository.ErrDuplicate
			}
			return fmt.Errorf("insert user: %w", err)
		}

		del, args, err := r.builder.Delete(pendingTable).
			Where(squirrel.Eq{"email": email}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete pending registration sql: %w", err)
		}

		tag, err := tx.Exec(ctx, del, args...)
		if err != nil {
			return fmt.Errorf("delete pending registration: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		return nil
	})
}

// Purge removes expired pending registrations.
func (r *PendingRegistrationRepository) Purge(ctx context.Context, now time.Time) error {
	stmt, args, err := r.builder.Delete(pendingTable).
		Where(squirrel.LtOrEq{"expires_at": now.UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build purge pending registrations sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("purge pending registrations: %w", err)
	}

	return nil
}

var _ port.PendingRegistrationStore = (*PendingRegistrationRepository)(nil)
