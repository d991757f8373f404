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

// ErrCredentialExists indicates the account already owns a credential record.
var ErrCredentialExists = errors.New("credential already exists")

// PasswordService manages the password credential lifecycle. A password
// change revokes every outstanding session for the account.
type PasswordService struct {
	credentials port.CredentialRepository
	tokens      port.RefreshTokenStore
	stampCache  port.SecurityStampCache
	hasher      port.PasswordHasher
	validator   *security.PasswordValidator
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	credentials port.CredentialRepository,
	tokens port.RefreshTokenStore,
	stampCache port.SecurityStampCache,
	hasher port.PasswordHasher,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	logger *zap.Logger,
) (*PasswordService, error) {
	if credentials == nil || tokens == nil {
		return nil, fmt.Errorf("credential and token stores are required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PasswordService{
		credentials: credentials,
		tokens:      tokens,
		stampCache:  stampCache,
		hasher:      hasher,
		validator:   validator,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// HashPassword derives a hash and fresh salt for the password.
func (s *PasswordService) HashPassword(password string) (string, string, error) {
	return s.hasher.Hash(password)
}

// VerifyPassword re-derives the key with the stored salt and compares in
// constant time.
func (s *PasswordService) VerifyPassword(password, hash, salt string) (bool, error) {
	return s.hasher.Verify(password, hash, salt)
}

// CreateCredential establishes the password record for a freshly registered
// account.
func (s *PasswordService) CreateCredential(ctx context.Context, accountID, password string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}

	if err := s.validator.Validate(password); err != nil {
		return err
	}

	if _, err := s.credentials.GetByAccountID(ctx, accountID); err == nil {
		return ErrCredentialExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup credential: %w", err)
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return fmt.Errorf("generate security stamp: %w", err)
	}

	credential := domain.Credential{
		AccountID:     accountID,
		PasswordHash:  hash,
		PasswordSalt:  salt,
		SecurityStamp: stamp,
		UpdatedAt:     s.now().UTC(),
	}
	if err := s.credentials.Create(ctx, credential); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}

	return nil
}

// ChangePassword verifies the current password, stores the new hash with a
// rotated security stamp, and revokes every refresh token for the account.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}

	credential, err := s.credentials.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("lookup credential: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, credential.PasswordHash, credential.PasswordSalt)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	validator := security.NewPasswordValidator(
		security.RequireDifferentFrom(currentPassword),
	)
	if err := validator.Validate(newPassword); err != nil {
		return err
	}
	if err := s.validator.Validate(newPassword); err != nil {
		return err
	}

	hash, salt, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return fmt.Errorf("generate security stamp: %w", err)
	}

	now := s.now().UTC()
	if err := s.credentials.UpdatePassword(ctx, accountID, hash, salt, stamp, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.tokens.DeleteByAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}

	if s.stampCache != nil {
		if err := s.stampCache.DeleteStamp(ctx, accountID); err != nil {
			return fmt.Errorf("invalidate stamp cache: %w", err)
		}
	}

	s.logger.Info("password changed",
		zap.String("account_id", accountID),
		zap.Int("tokens_revoked", revoked),
	)

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: accountID,
			ChangedAt: now,
			ChangedBy: accountID,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
	}

	return nil
}
