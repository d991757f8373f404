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

const verificationCodesTable = "idp.verification_codes"

// VerificationCodeStore implements port.VerificationCodeStore using PostgreSQL.
type VerificationCodeStore struct {
	db      pgDatabase
	builder squirrel.StatementBuilderType
}

// NewVerificationCodeStore constructs a verification code store. The database
// handle must support transactions for Replace.
func NewVerificationCodeStore(db pgDatabase) *VerificationCodeStore {
	return &VerificationCodeStore{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Replace swaps the active code for the (identifier, purpose) pair inside one
// transaction, so a reissued code always supersedes the previous one.
func (s *VerificationCodeStore) Replace(ctx context.Context, code domain.VerificationCode) error {
	deleteStmt, deleteArgs, err := s.builder.Delete(verificationCodesTable).
		Where(squirrel.Eq{
			"identifier": code.Identifier,
			"purpose":    string(code.Purpose),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete verification code sql: %w", err)
	}

	insertStmt, insertArgs, err := s.builder.Insert(verificationCodesTable).
		Columns("id", "identifier", "code", "purpose", "created_at", "expires_at").
		Values(
			code.ID,
			code.Identifier,
			code.Code,
			string(code.Purpose),
			code.CreatedAt.UTC(),
			code.ExpiresAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert verification code sql: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace verification code: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteStmt, deleteArgs...); err != nil {
		return fmt.Errorf("delete previous verification code: %w", err)
	}
	if _, err := tx.Exec(ctx, insertStmt, insertArgs...); err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace verification code: %w", err)
	}

	return nil
}

// Find fetches the active code matching identifier, purpose, and value.
func (s *VerificationCodeStore) Find(ctx context.Context, identifier string, purpose domain.CodePurpose, code string) (*domain.VerificationCode, error) {
	stmt, args, err := s.builder.Select("id", "identifier", "code", "purpose", "created_at", "expires_at").
		From(verificationCodesTable).
		Where(squirrel.Eq{
			"identifier": identifier,
			"purpose":    string(purpose),
			"code":       code,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification code sql: %w", err)
	}

	var record domain.VerificationCode
	if err := s.db.QueryRow(ctx, stmt, args...).Scan(
		&record.ID,
		&record.Identifier,
		&record.Code,
		&record.Purpose,
		&record.CreatedAt,
		&record.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification code: %w", err)
	}

	return &record, nil
}

// Delete removes a single code by id.
func (s *VerificationCodeStore) Delete(ctx context.Context, id string) error {
	stmt, args, err := s.builder.Delete(verificationCodesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete verification code sql: %w", err)
	}

	ct, err := s.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteExpired removes every code whose expiry is at or before the cutoff.
func (s *VerificationCodeStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := s.builder.Delete(verificationCodesTable).
		Where(squirrel.LtOrEq{"expires_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired codes sql: %w", err)
	}

	ct, err := s.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.VerificationCodeStore = (*VerificationCodeStore)(nil)
