package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/infra/logger"
)

// Notifier hands verification messages to the notification service over
// Kafka. Delivery transport (email, SMS) is owned by the consumer; this side
// only guarantees the hand-off.
type Notifier struct {
	producer *Producer
	logger   *zap.Logger
	enabled  bool
}

// NewNotifier constructs a Kafka-backed notifier. A nil producer yields a
// disabled notifier, which makes code issuance fail fast.
func NewNotifier(producer *Producer, log *zap.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   log,
		enabled:  producer != nil,
	}
}

// IsEnabled reports whether the delivery hand-off is available.
func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

type verificationMessage struct {
	MessageID   string    `json:"message_id"`
	Target      string    `json:"target"`
	DisplayName string    `json:"display_name,omitempty"`
	Code        string    `json:"code"`
	QueuedAt    time.Time `json:"queued_at"`
}

// SendVerificationMessage enqueues the code for out-of-band delivery.
func (n *Notifier) SendVerificationMessage(ctx context.Context, target, displayName, code string) error {
	if !n.enabled {
		return fmt.Errorf("notifier is disabled")
	}

	message := verificationMessage{
		MessageID:   uuid.NewString(),
		Target:      target,
		DisplayName: displayName,
		Code:        code,
		QueuedAt:    time.Now().UTC(),
	}

	bytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal verification message: %w", err)
	}

	producerMessage := &sarama.ProducerMessage{
		Topic: n.producer.TopicName("notification.verification"),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case n.producer.Producer().Input() <- producerMessage:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.logger.Debug("verification message queued",
		zap.String("target", logger.MaskEmail(target)),
		zap.String("code", logger.MaskString(code)),
	)
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
