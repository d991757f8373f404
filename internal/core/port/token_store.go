package port

import (
	"context"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
)

// RefreshTokenStore persists refresh token records keyed by token hash.
type RefreshTokenStore interface {
	Insert(ctx context.Context, token domain.RefreshToken) error
	// Consume atomically deletes the record for the hash and returns it.
	// At most one caller observes a given token; everyone else gets
	// repository.ErrNotFound. This is the rotation synchronization point.
	Consume(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Delete removes a single token. Missing rows report ErrNotFound so the
	// caller can decide whether absence matters.
	Delete(ctx context.Context, tokenHash string) error
	DeleteByAccount(ctx context.Context, accountID string) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.RefreshToken, error)
}
