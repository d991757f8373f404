package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/avelor/identity-auth/internal/core/domain"
	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/repository"
)

const refreshTokensTable = "idp.refresh_tokens"

// RefreshTokenStore implements port.RefreshTokenStore using PostgreSQL.
// Rows are keyed by the SHA-256 hash of the raw token.
type RefreshTokenStore struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRefreshTokenStore constructs a refresh token store.
func NewRefreshTokenStore(exec pgExecutor) *RefreshTokenStore {
	return &RefreshTokenStore{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert persists a freshly issued refresh token record.
func (s *RefreshTokenStore) Insert(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := s.builder.Insert(refreshTokensTable).
		Columns("token_hash", "account_id", "created_at", "expires_at", "device_info").
		Values(
			token.TokenHash,
			token.AccountID,
			token.CreatedAt.UTC(),
			token.ExpiresAt.UTC(),
			optionalString(token.DeviceInfo),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// Consume deletes the row for the hash and returns its prior contents in one
// statement. Concurrent redeemers of the same token race on the DELETE, so at
// most one of them sees the record.
func (s *RefreshTokenStore) Consume(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	stmt, args, err := s.builder.Delete(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Suffix("RETURNING token_hash, account_id, created_at, expires_at, device_info").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build consume refresh token sql: %w", err)
	}

	var (
		token      domain.RefreshToken
		deviceInfo sql.NullString
	)
	if err := s.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.TokenHash,
		&token.AccountID,
		&token.CreatedAt,
		&token.ExpiresAt,
		&deviceInfo,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	token.DeviceInfo = nullableStringPtr(deviceInfo)

	return &token, nil
}

// Delete removes a single token record.
func (s *RefreshTokenStore) Delete(ctx context.Context, tokenHash string) error {
	stmt, args, err := s.builder.Delete(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete refresh token sql: %w", err)
	}

	ct, err := s.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteByAccount drops every refresh token owned by the account and reports
// how many were removed.
func (s *RefreshTokenStore) DeleteByAccount(ctx context.Context, accountID string) (int, error) {
	stmt, args, err := s.builder.Delete(refreshTokensTable).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete tokens by account sql: %w", err)
	}

	ct, err := s.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete tokens by account: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// DeleteExpired removes every token whose expiry is at or before the cutoff.
func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := s.builder.Delete(refreshTokensTable).
		Where(squirrel.LtOrEq{"expires_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	ct, err := s.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// ListByAccount returns the account's live refresh token records, newest first.
func (s *RefreshTokenStore) ListByAccount(ctx context.Context, accountID string) ([]domain.RefreshToken, error) {
	stmt, args, err := s.builder.Select("token_hash", "account_id", "created_at", "expires_at", "device_info").
		From(refreshTokensTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tokens by account sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens by account: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		var (
			token      domain.RefreshToken
			deviceInfo sql.NullString
		)
		if err := rows.Scan(
			&token.TokenHash,
			&token.AccountID,
			&token.CreatedAt,
			&token.ExpiresAt,
			&deviceInfo,
		); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		token.DeviceInfo = nullableStringPtr(deviceInfo)
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}

	return tokens, nil
}

var _ port.RefreshTokenStore = (*RefreshTokenStore)(nil)
