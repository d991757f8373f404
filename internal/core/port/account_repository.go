package port

import (
	"context"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
)

// AccountRepository resolves account identity records. The account tables are
// owned by the profile service; the auth core only reads identity, role, and
// status, and touches the last-login timestamp.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIdentifier resolves an account by username or primary e-mail.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
