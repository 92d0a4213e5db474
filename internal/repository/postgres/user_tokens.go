package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/repository"
)

const userTokensTable = "finledger.user_tokens"

// UserTokenRepository implements port.UserTokenRepository using PostgreSQL.
type UserTokenRepository struct {
	pool    pgPool
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewUserTokenRepository constructs a user token repository.
func NewUserTokenRepository(pool pgPool) *UserTokenRepository {
	return &UserTokenRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *UserTokenRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Issue stores the token after consuming any prior active token of the same
// kind for the same user, so only the newest code ever redeems.
func (r *UserTokenRepository) Issue(ctx context.Context, token domain.UserToken) error {
	return runInTx(ctx, r.pool, func(tx pgx.Tx) error {
		invalidate, args, err := r.builder.Update(userTokensTable).
			Set("used_at", token.CreatedAt.UTC()).
			Where(squirrel.Eq{
				"user_id": token.UserID,
				"kind":    token.Kind,
				"used_at": nil,
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build invalidate tokens sql: %w", err)
		}

		if _, err := tx.Exec(ctx, invalidate, args...); err != nil {
			return fmt.Errorf("invalidate prior tokens: %w", err)
		}

		insert, args, err := r.builder.Insert(userTokensTable).
			Columns("id", "user_id", "kind", "token_hash", "created_at", "expires_at", "used_at").
			Values(
				token.ID,
				token.UserID,
				token.Kind,
				token.TokenHash,
				token.CreatedAt.UTC(),
				token.ExpiresAt.UTC(),
				token.UsedAt,
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert token sql: %w", err)
		}

		if _, err := tx.Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert token: %w", err)
		}

		return nil
	})
}

// GetActiveByHash retrieves an unused, unexpired token by its hash and kind.
func (r *UserTokenRepository) GetActiveByHash(ctx context.Context, kind domain.UserTokenKind, tokenHash string) (*domain.UserToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "kind", "token_hash", "created_at", "expires_at", "used_at").
		From(userTokensTable).
		Where(squirrel.Eq{"kind": kind, "token_hash": tokenHash, "used_at": nil}).
		Where(squirrel.Gt{"expires_at": r.now().UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	var token domain.UserToken
	err = r.pool.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.Kind,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select token: %w", err)
	}

	return &token, nil
}

// Consume marks the token as used. Already-consumed tokens return ErrNotFound.
func (r *UserTokenRepository) Consume(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(userTokensTable).
		Set("used_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "used_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume token sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Purge removes expired and consumed tokens.
func (r *UserTokenRepository) Purge(ctx context.Context, now time.Time) error {
	stmt, args, err := r.builder.Delete(userTokensTable).
		Where(squirrel.Or{
			squirrel.LtOrEq{"expires_at": now.UTC()},
			squirrel.NotEq{"used_at": nil},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build purge tokens sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("purge tokens: %w", err)
	}

	return nil
}

var _ port.UserTokenRepository = (*UserTokenRepository)(nil)
