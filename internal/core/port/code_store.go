package port

import (
	"context"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
)

// VerificationCodeStore persists out-of-band verification codes.
type VerificationCodeStore interface {
	// Replace deletes any existing code for the (identifier, purpose) pair and
	// inserts the new one within a single transaction, keeping at most one
	// active code per pair.
	Replace(ctx context.Context, code domain.VerificationCode) error
	Find(ctx context.Context, identifier string, purpose domain.CodePurpose, code string) (*domain.VerificationCode, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
