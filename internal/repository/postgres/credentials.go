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

const credentialsTable = "idp.credentials"

// CredentialRepository implements port.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository constructs a credential repository.
func NewCredentialRepository(exec pgExecutor) *CredentialRepository {
	return &CredentialRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the credential record for a freshly registered account.
func (r *CredentialRepository) Create(ctx context.Context, credential domain.Credential) error {
	stmt, args, err := r.builder.Insert(credentialsTable).
		Columns("account_id", "password_hash", "password_salt", "security_stamp", "updated_at").
		Values(
			credential.AccountID,
			credential.PasswordHash,
			credential.PasswordSalt,
			credential.SecurityStamp,
			credential.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert credential sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

// GetByAccountID fetches the credential owned by the account.
func (r *CredentialRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.Credential, error) {
	stmt, args, err := r.builder.Select(
		"account_id",
		"password_hash",
		"password_salt",
		"security_stamp",
		"updated_at",
	).
		From(credentialsTable).
		Where(squirrel.Eq{"account_id": accountID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select credential sql: %w", err)
	}

	var credential domain.Credential
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&credential.AccountID,
		&credential.PasswordHash,
		&credential.PasswordSalt,
		&credential.SecurityStamp,
		&credential.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	return &credential, nil
}

// UpdatePassword replaces hash, salt, and security stamp in one statement so
// outstanding access tokens are invalidated together with the old password.
func (r *CredentialRepository) UpdatePassword(ctx context.Context, accountID, hash, salt, stamp string, at time.Time) error {
	stmt, args, err := r.builder.Update(credentialsTable).
		Set("password_hash", hash).
		Set("password_salt", salt).
		Set("security_stamp", stamp).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RotateSecurityStamp replaces only the stamp value.
func (r *CredentialRepository) RotateSecurityStamp(ctx context.Context, accountID, stamp string, at time.Time) error {
	stmt, args, err := r.builder.Update(credentialsTable).
		Set("security_stamp", stamp).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rotate security stamp sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("rotate security stamp: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.CredentialRepository = (*CredentialRepository)(nil)
