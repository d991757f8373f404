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

const accountsTable = "idp.accounts"

var accountColumns = []string{
	"id",
	"username",
	"email",
	"display_name",
	"role",
	"status",
	"last_login_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID fetches an account by its identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier resolves an account by username or primary e-mail,
// case-insensitive on the e-mail side.
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	stmt, args, err := r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Expr("lower(email) = lower(?)", identifier),
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by identifier sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdateLastLogin records the latest successful login timestamp.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("last_login_at", at.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		lastLoginAt sql.NullTime
	)

	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.DisplayName,
		&account.Role,
		&account.Status,
		&lastLoginAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.LastLoginAt = nullableTimePtr(lastLoginAt)

	return &account, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
