package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/core/domain"
	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/infra/security"
	"github.com/avelor/identity-auth/internal/repository"
)

// ErrNotifierUnavailable indicates the delivery capability is disabled, so no
// code was generated.
var ErrNotifierUnavailable = errors.New("notifier unavailable")

const (
	defaultCodeLength = 6
	defaultCodeTTL    = 15 * time.Minute
)

// VerificationCodeService generates, delivers, and validates short-lived
// out-of-band codes.
type VerificationCodeService struct {
	codes      port.VerificationCodeStore
	notifier   port.Notifier
	events     port.EventPublisher
	logger     *zap.Logger
	codeLength int
	codeTTL    time.Duration
	now        func() time.Time
}

// NewVerificationCodeService constructs a VerificationCodeService instance.
func NewVerificationCodeService(
	codes port.VerificationCodeStore,
	notifier port.Notifier,
	events port.EventPublisher,
	logger *zap.Logger,
	codeLength int,
	codeTTL time.Duration,
) (*VerificationCodeService, error) {
	if codes == nil {
		return nil, fmt.Errorf("code store is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeLength <= 0 {
		codeLength = defaultCodeLength
	}
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}

	return &VerificationCodeService{
		codes:      codes,
		notifier:   notifier,
		events:     events,
		logger:     logger,
		codeLength: codeLength,
		codeTTL:    codeTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *VerificationCodeService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// GenerateAndSend issues a fresh code for the (identifier, purpose) pair,
// replacing any prior active code, and hands it to the notifier. The code is
// durably persisted before delivery is attempted, so a delivery failure
// leaves a valid-but-unsent code the caller may retry sending.
func (s *VerificationCodeService) GenerateAndSend(ctx context.Context, identifier string, purpose domain.CodePurpose, displayName string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if purpose == "" {
		return fmt.Errorf("purpose is required")
	}

	if !s.notifier.IsEnabled() {
		return ErrNotifierUnavailable
	}

	value, err := security.GenerateCode(s.codeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	code := domain.VerificationCode{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Code:       value,
		Purpose:    purpose,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.codeTTL),
	}

	if err := s.codes.Replace(ctx, code); err != nil {
		return fmt.Errorf("persist verification code: %w", err)
	}

	if s.events != nil {
		event := domain.VerificationCodeIssuedEvent{
			EventID:     uuid.NewString(),
			Identifier:  identifier,
			DisplayName: displayName,
			Code:        value,
			Purpose:     string(purpose),
			IssuedAt:    code.CreatedAt,
			ExpiresAt:   code.ExpiresAt,
		}
		if err := s.events.PublishVerificationCodeIssued(ctx, event); err != nil {
			s.logger.Warn("publish verification code event failed",
				zap.String("purpose", string(purpose)),
				zap.Error(err),
			)
		}
	}

	if err := s.notifier.SendVerificationMessage(ctx, identifier, displayName, value); err != nil {
		return fmt.Errorf("send verification message: %w", err)
	}

	return nil
}

// Validate redeems a code. A found, current code is deleted (single-use) and
// reports valid; an expired code is deleted lazily and reports invalid.
func (s *VerificationCodeService) Validate(ctx context.Context, identifier string, purpose domain.CodePurpose, code string) (bool, error) {
	identifier = strings.TrimSpace(identifier)
	code = strings.ToUpper(strings.TrimSpace(code))
	if identifier == "" || code == "" {
		return false, nil
	}

	record, err := s.codes.Find(ctx, identifier, purpose, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup verification code: %w", err)
	}

	if record.IsExpired(s.now().UTC()) {
		if err := s.codes.Delete(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("delete expired verification code failed",
				zap.String("purpose", string(purpose)),
				zap.Error(err),
			)
		}
		return false, nil
	}

	if err := s.codes.Delete(ctx, record.ID); err != nil {
		// A concurrent redeemer already consumed it; single-use holds.
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("consume verification code: %w", err)
	}

	return true, nil
}
