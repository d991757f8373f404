package port

import (
	"context"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
)

// CredentialRepository manages the one-to-one password record per account.
type CredentialRepository interface {
	Create(ctx context.Context, credential domain.Credential) error
	GetByAccountID(ctx context.Context, accountID string) (*domain.Credential, error)
	// UpdatePassword replaces hash and salt and rotates the security stamp in
	// the same statement so a password change always invalidates outstanding
	// access tokens.
	UpdatePassword(ctx context.Context, accountID, hash, salt, stamp string, at time.Time) error
	// RotateSecurityStamp replaces only the stamp, used by revoke-all.
	RotateSecurityStamp(ctx context.Context, accountID, stamp string, at time.Time) error
}
