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

const resetSessionsTable = "finledger.password_reset_sessions"

// ResetSessionRepository implements port.ResetSessionStore using PostgreSQL.
type ResetSessionRepository struct {
	pool    pgPool
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewResetSessionRepository constructs a reset session repository.
func NewResetSessionRepository(pool pgPool) *ResetSessionRepository {
	return &ResetSessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *ResetSessionRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Create stores the session after consuming all prior reset sessions for the
// same user. Confirming a fresh code always kills the previous window.
func (r *ResetSessionRepository) Create(ctx context.Context, session domain.PasswordResetSession) error {
	return runInTx(ctx, r.pool, func(tx pgx.Tx) error {
		invalidate, args, err := r.builder.Update(resetSessionsTable).
			Set("consumed_at", session.CreatedAt.UTC()).
			Where(squirrel.Eq{"user_id": session.UserID, "consumed_at": nil}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build invalidate reset sessions sql: %w", err)
		}
		if _, err := tx.Exec(ctx, invalidate, args...); err != nil {
			return fmt.Errorf("invalidate prior reset sessions: %w", err)
		}

		insert, args, err := r.builder.Insert(resetSessionsTable).
			Columns("jti", "user_id", "ip_hash", "ua_hash", "created_at", "expires_at", "consumed_at").
			Values(
				session.JTI,
				session.UserID,
				session.IPHash,
				session.UAHash,
				session.CreatedAt.UTC(),
				session.ExpiresAt.UTC(),
				session.ConsumedAt,
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert reset session sql: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert reset session: %w", err)
		}

		return nil
	})
}

// GetActive retrieves the session only while it is unconsumed and unexpired.
func (r *ResetSessionRepository) GetActive(ctx context.Context, jti string) (*domain.PasswordResetSession, error) {
	stmt, args, err := r.builder.
		Select("jti", "user_id", "ip_hash", "ua_hash", "created_at", "expires_at", "consumed_at").
		From(resetSessionsTable).
		Where(squirrel.Eq{"jti": jti, "consumed_at": nil}).
		Where(squirrel.Gt{"expires_at": r.now().UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset session sql: %w", err)
	}

	var session domain.PasswordResetSession
	err = r.pool.QueryRow(ctx, stmt, args...).Scan(
		&session.JTI,
		&session.UserID,
		&session.IPHash,
		&session.UAHash,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.ConsumedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select reset session: %w", err)
	}

	return &session, nil
}

// Consume marks the session consumed. The guard on consumed_at makes the
// spend a compare-and-set: only one caller wins, everyone else gets
// repository.ErrNotFound.
func (r *ResetSessionRepository) Consume(ctx context.Context, jti string, at time.Time) error {
	stmt, args, err := r.builder.Update(resetSessionsTable).
		Set("consumed_at", at.UTC()).
		Where(squirrel.Eq{"jti": jti, "consumed_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume reset session sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume reset session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Purge removes expired and consumed sessions.
func (r *ResetSessionRepository) Purge(ctx context.Context, now time.Time) error {
	stmt, args, err := r.builder.Delete(resetSessionsTable).
		Where(squirrel.Or{
			squirrel.LtOrEq{"expires_at": now.UTC()},
			squirrel.NotEq{"consumed_at": nil},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build purge reset sessions sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("purge reset sessions: %w", err)
	}

	return nil
}

var _ port.ResetSessionStore = (*ResetSessionRepository)(nil)
