package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/core/domain"
	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/infra/config"
	"github.com/avelor/identity-auth/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionRevoked publishes idp.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		AccountID     string         `json:"account_id"`
		RevokedAt     time.Time      `json:"revoked_at"`
		Reason        string         `json:"reason"`
		TokensRevoked int            `json:"tokens_revoked"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:     event.AccountID,
		RevokedAt:     event.RevokedAt.UTC(),
		Reason:        event.Reason,
		TokensRevoked: event.TokensRevoked,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "session.revoked", event.AccountID, event.RevokedAt, payload)
}

// PublishPasswordChanged publishes idp.credential.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		ChangedAt time.Time      `json:"changed_at"`
		ChangedBy string         `json:"changed_by"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
		ChangedBy: event.ChangedBy,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "credential.password.changed", event.AccountID, event.ChangedAt, payload)
}

// PublishVerificationCodeIssued publishes idp.verification.code.issued events.
// The event carries the code so the notification service can deliver it; the
// identifier is masked in logs, never in the payload.
func (p *EventPublisher) PublishVerificationCodeIssued(ctx context.Context, event domain.VerificationCodeIssuedEvent) error {
	payload := struct {
		Identifier  string    `json:"identifier"`
		DisplayName string    `json:"display_name,omitempty"`
		Code        string    `json:"code"`
		Purpose     string    `json:"purpose"`
		IssuedAt    time.Time `json:"issued_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		Identifier:  event.Identifier,
		DisplayName: event.DisplayName,
		Code:        event.Code,
		Purpose:     event.Purpose,
		IssuedAt:    event.IssuedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	if err := p.publish(ctx, event.EventID, "verification.code.issued", "", event.IssuedAt, payload); err != nil {
		return err
	}

	p.logger.Debug("verification code event queued",
		zap.String("identifier", logger.MaskEmail(event.Identifier)),
		zap.String("purpose", event.Purpose),
	)
	return nil
}

var _ port.EventPublisher = (*EventPublisher)(nil)
