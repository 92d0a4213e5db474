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
)

const sessionsTable = "finledger.user_sessions"

// SessionRepository implements port.SessionRegistry backed by PostgreSQL.
type SessionRepository struct {
	pool    pgPool
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(pool pgPool) *SessionRepository {
	return &SessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *SessionRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Register prunes the user's expired sessions, inserts the new one, and
// evicts oldest-first until the user is back at the cap. The whole sequence
// runs in one transaction with the user's rows locked, so two concurrent
// logins cannot both slip past the cap.
func (r *SessionRepository) Register(ctx context.Context, session domain.UserSession, maxPerUser int) error {
	if maxPerUser <= 0 {
		return errors.New("maxPerUser must be positive")
	}

	return runInTx(ctx, r.pool, func(tx pgx.Tx) error {
		lock, args, err := r.builder.
			Select("jti").
			From(sessionsTable).
			Where(squirrel.Eq{"user_id": session.UserID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock sessions sql: %w", err)
		}
		rows, err := tx.Query(ctx, lock, args...)
		if err != nil {
			return fmt.Errorf("lock sessions: %w", err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("lock sessions: %w", err)
		}

		prune, args, err := r.builder.Delete(sessionsTable).
			Where(squirrel.Eq{"user_id": session.UserID}).
			Where(squirrel.LtOrEq{"expires_at": r.now().UTC()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build prune sessions sql: %w", err)
		}
		if _, err := tx.Exec(ctx, prune, args...); err != nil {
			return fmt.Errorf("prune expired sessions: %w", err)
		}

		insert, args, err := r.builder.Insert(sessionsTable).
			Columns("jti", "user_id", "created_at", "expires_at").
			Values(session.JTI, session.UserID, session.CreatedAt.UTC(), session.ExpiresAt.UTC()).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert session sql: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		trim := fmt.Sprintf(`DELETE FROM %s WHERE jti IN (
			SELECT jti FROM %s WHERE user_id = $1
			ORDER BY created_at DESC, jti DESC OFFSET $2
		)`, sessionsTable, sessionsTable)
		if _, err := tx.Exec(ctx, trim, session.UserID, maxPerUser); err != nil {
			return fmt.Errorf("trim sessions: %w", err)
		}

		return nil
	})
}

// IsActive reports whether a non-expired session exists for the jti.
func (r *SessionRepository) IsActive(ctx context.Context, jti string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From(sessionsTable).
		Where(squirrel.Eq{"jti": jti}).
		Where(squirrel.Gt{"expires_at": r.now().UTC()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select session sql: %w", err)
	}

	var one int
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select session: %w", err)
	}

	return true, nil
}

// Revoke deletes the session if present. Idempotent.
func (r *SessionRepository) Revoke(ctx context.Context, jti string) error {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"jti": jti}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// RevokeAll deletes and returns all session ids for the user.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("RETURNING jti").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build revoke all sessions sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("revoke all sessions: %w", err)
	}
	defer rows.Close()

	var jtis []string
	for rows.Next() {
		var jti string
		if err := rows.Scan(&jti); err != nil {
			return nil, fmt.Errorf("scan revoked session: %w", err)
		}
		jtis = append(jtis, jti)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked sessions: %w", err)
	}

	return jtis, nil
}

// Purge removes expired sessions.
func (r *SessionRepository) Purge(ctx context.Context, now time.Time) error {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.LtOrEq{"expires_at": now.UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build purge sessions sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}

	return nil
}

var _ port.SessionRegistry = (*SessionRepository)(nil)
