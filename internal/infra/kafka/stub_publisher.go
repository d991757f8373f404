package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/core/domain"
	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionRevoked logs session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"account_id":     event.AccountID,
		"revoked_at":     event.RevokedAt,
		"reason":         event.Reason,
		"tokens_revoked": event.TokensRevoked,
		"metadata":       event.Metadata,
	}
	p.logEvent("session.revoked", event.AccountID, event.RevokedAt, payload)
	return nil
}

// PublishPasswordChanged logs credential.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"changed_at": event.ChangedAt,
		"changed_by": event.ChangedBy,
		"metadata":   event.Metadata,
	}
	p.logEvent("credential.password.changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishVerificationCodeIssued logs verification.code.issued events with the
// code value masked.
func (p *StubPublisher) PublishVerificationCodeIssued(_ context.Context, event domain.VerificationCodeIssuedEvent) error {
	payload := map[string]any{
		"identifier": logger.MaskEmail(event.Identifier),
		"code":       logger.MaskString(event.Code),
		"purpose":    event.Purpose,
		"issued_at":  event.IssuedAt,
		"expires_at": event.ExpiresAt,
	}
	p.logEvent("verification.code.issued", "", event.IssuedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
