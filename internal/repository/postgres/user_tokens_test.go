package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/repository"
)

func TestUserTokenRepository_Issue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserTokenRepository(mock)

	now := time.Now().UTC()
	token := domain.UserToken{
		ID:        "token-1",
		UserID:    "user-1",
		Kind:      domain.UserTokenReset,
		TokenHash: "hash-1",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE finledger\.user_tokens SET`).
		WithArgs(token.CreatedAt, token.Kind, token.UserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO finledger\.user_tokens`).
		WithArgs(token.ID, token.UserID, token.Kind, token.TokenHash, token.CreatedAt, token.ExpiresAt, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Issue(context.Background(), token); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserTokenRepository_GetActiveByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserTokenRepository(mock)

	now := time.Now().UTC()
	repo.WithClock(func() time.Time { return now })

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "kind", "token_hash", "created_at", "expires_at", "used_at",
	}).AddRow(
		"token-1", "user-1", domain.UserTokenVerify, "hash-1", now, now.Add(24*time.Hour), nil,
	)

	mock.ExpectQuery(`SELECT .*FROM finledger\.user_tokens`).
		WithArgs(domain.UserTokenVerify, "hash-1", now).
		WillReturnRows(rows)

	token, err := repo.GetActiveByHash(context.Background(), domain.UserTokenVerify, "hash-1")
	if err != nil {
		t.Fatalf("GetActiveByHash returned error: %v", err)
	}
	if token.ID != "token-1" || token.UserID != "user-1" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.UsedAt != nil {
		t.Fatal("expected unused token")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserTokenRepository_GetActiveByHash_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserTokenRepository(mock)

	now := time.Now().UTC()
	repo.WithClock(func() time.Time { return now })

	mock.ExpectQuery(`SELECT .*FROM finledger\.user_tokens`).
		WithArgs(domain.UserTokenReset, "unknown", now).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetActiveByHash(context.Background(), domain.UserTokenReset, "unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserTokenRepository_Consume(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserTokenRepository(mock)

	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE finledger\.user_tokens SET`).
		WithArgs(at, "token-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Consume(context.Background(), "token-1", at); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}

	// Second consume affects no rows.
	mock.ExpectExec(`UPDATE finledger\.user_tokens SET`).
		WithArgs(at, "token-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Consume(context.Background(), "token-1", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserTokenRepository_Purge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserTokenRepository(mock)

	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM finledger\.user_tokens`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	if err := repo.Purge(context.Background(), now); err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
