package port

import (
	"context"

	"github.com/avelor/identity-auth/internal/core/domain"
)

// EventPublisher publishes auth domain events to the message bus.
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishVerificationCodeIssued(ctx context.Context, event domain.VerificationCodeIssuedEvent) error
}
