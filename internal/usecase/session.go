package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/core/domain"
	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/infra/security"
	"github.com/avelor/identity-auth/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	// Unknown identifier and wrong password report the same error so callers
	// cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredToken indicates the refresh or access token is absent,
	// consumed, or past expiry; the client should re-authenticate.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrAccountLocked indicates the account is banned and rejected even with
	// otherwise valid credentials or tokens.
	ErrAccountLocked = errors.New("account is locked")
)

// Stamp cache entries are short-lived; a miss falls back to the credential
// record, so the TTL only bounds staleness after a failed invalidation,
// never correctness of the happy path.
const defaultStampCacheTTL = 5 * time.Minute

// SessionService orchestrates login, refresh rotation, logout, and
// account-wide revocation.
type SessionService struct {
	accounts    port.AccountRepository
	credentials port.CredentialRepository
	tokens      port.RefreshTokenStore
	stampCache  port.SecurityStampCache
	hasher      port.PasswordHasher
	issuer      *security.TokenIssuer
	events      port.EventPublisher
	logger      *zap.Logger
	logins      prometheus.Counter
	failures    prometheus.Counter
	stampTTL    time.Duration
	now         func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(
	accounts port.AccountRepository,
	credentials port.CredentialRepository,
	tokens port.RefreshTokenStore,
	stampCache port.SecurityStampCache,
	hasher port.PasswordHasher,
	issuer *security.TokenIssuer,
	events port.EventPublisher,
	logger *zap.Logger,
) (*SessionService, error) {
	if accounts == nil || credentials == nil || tokens == nil {
		return nil, fmt.Errorf("account, credential, and token stores are required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SessionService{
		accounts:    accounts,
		credentials: credentials,
		tokens:      tokens,
		stampCache:  stampCache,
		hasher:      hasher,
		issuer:      issuer,
		events:      events,
		logger:      logger,
		stampTTL:    defaultStampCacheTTL,
		now:         time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithStampTTL overrides how long resolved security stamps stay cached.
func (s *SessionService) WithStampTTL(ttl time.Duration) {
	if ttl > 0 {
		s.stampTTL = ttl
	}
}

// WithMetrics attaches login outcome counters.
func (s *SessionService) WithMetrics(logins, failures prometheus.Counter) {
	s.logins = logins
	s.failures = failures
}

func (s *SessionService) countLogin() {
	if s.logins != nil {
		s.logins.Inc()
	}
}

func (s *SessionService) countFailure() {
	if s.failures != nil {
		s.failures.Inc()
	}
}

// Login verifies credentials and establishes a session.
func (s *SessionService) Login(ctx context.Context, identifier, password, deviceInfo string) (*domain.TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countFailure()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	credential, err := s.credentials.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countFailure()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	ok, err := s.hasher.Verify(password, credential.PasswordHash, credential.PasswordSalt)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.countFailure()
		return nil, ErrInvalidCredentials
	}

	// Suspended and pending-deletion accounts may still log in so the owner
	// can self-recover; only a ban is a hard lockout.
	if !account.CanAuthenticate() {
		s.countFailure()
		return nil, ErrAccountLocked
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("update last login failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	var device *string
	if trimmed := strings.TrimSpace(deviceInfo); trimmed != "" {
		device = &trimmed
	}

	pair, err := s.issuePair(ctx, *account, credential.SecurityStamp, device)
	if err != nil {
		return nil, err
	}

	s.countLogin()
	return pair, nil
}

// Refresh rotates a refresh token into a new access/refresh pair. The stored
// token is consumed first, so at most one rotation per token value succeeds.
func (s *SessionService) Refresh(ctx context.Context, accessToken, refreshToken string) (*domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	record, err := s.tokens.Consume(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	if record.IsExpired(s.now().UTC()) {
		return nil, ErrInvalidOrExpiredToken
	}

	// The access token is untrusted input here; when it still parses, its
	// subject must match the refresh token owner.
	if claims, parseErr := s.issuer.ParseAccessToken(accessToken); parseErr == nil {
		if claims.AccountID != record.AccountID {
			return nil, ErrInvalidOrExpiredToken
		}
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !account.CanAuthenticate() {
		return nil, ErrAccountLocked
	}

	credential, err := s.credentials.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	return s.issuePair(ctx, *account, credential.SecurityStamp, record.DeviceInfo)
}

// Logout deletes the matching refresh token. Absence is not an error.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	if err := s.tokens.Delete(ctx, security.HashToken(refreshToken)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete refresh token: %w", err)
	}

	return nil
}

// RevokeAll deletes every refresh token owned by the account and rotates the
// credential security stamp, logically invalidating already-issued access
// tokens before their individual expiry.
func (s *SessionService) RevokeAll(ctx context.Context, accountID, reason string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}

	count, err := s.tokens.DeleteByAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("delete account tokens: %w", err)
	}

	now := s.now().UTC()
	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return fmt.Errorf("generate security stamp: %w", err)
	}

	if err := s.credentials.RotateSecurityStamp(ctx, accountID, stamp, now); err != nil {
		return fmt.Errorf("rotate security stamp: %w", err)
	}

	if s.stampCache != nil {
		if err := s.stampCache.DeleteStamp(ctx, accountID); err != nil {
			return fmt.Errorf("invalidate stamp cache: %w", err)
		}
	}

	s.logger.Info("revoked all sessions",
		zap.String("account_id", accountID),
		zap.String("reason", reason),
		zap.Int("tokens_revoked", count),
	)

	if s.events != nil {
		event := domain.SessionRevokedEvent{
			EventID:       uuid.NewString(),
			AccountID:     accountID,
			RevokedAt:     now,
			Reason:        reason,
			TokensRevoked: count,
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish session revoked event failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// VerifyAccessToken validates the token signature and claims, then compares
// the embedded security stamp against the current stored stamp. A signature
// that verifies is not sufficient after RevokeAll.
func (s *SessionService) VerifyAccessToken(ctx context.Context, token string) (*security.AccessTokenClaims, error) {
	claims, err := s.issuer.ParseAccessToken(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredAccessToken) || errors.Is(err, security.ErrInvalidAccessToken) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	current, err := s.currentStamp(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("resolve security stamp: %w", err)
	}

	if claims.SecurityStamp != current {
		return nil, ErrInvalidOrExpiredToken
	}

	return claims, nil
}

// ListSessions returns the account's live refresh token records for the
// user's own session-list visibility.
func (s *SessionService) ListSessions(ctx context.Context, accountID string) ([]domain.RefreshToken, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}

	records, err := s.tokens.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account tokens: %w", err)
	}

	now := s.now().UTC()
	live := records[:0]
	for _, record := range records {
		if !record.IsExpired(now) {
			live = append(live, record)
		}
	}

	return live, nil
}

func (s *SessionService) issuePair(ctx context.Context, account domain.Account, stamp string, device *string) (*domain.TokenPair, error) {
	accessToken, err := s.issuer.IssueAccessToken(account, stamp)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now().UTC()
	record := domain.RefreshToken{
		TokenHash:  security.HashToken(refreshToken),
		AccountID:  account.ID,
		CreatedAt:  now,
		ExpiresAt:  s.issuer.RefreshTokenExpiry(),
		DeviceInfo: device,
	}
	if err := s.tokens.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  s.issuer.AccessTokenExpiry(),
		RefreshExpiry: record.ExpiresAt,
	}, nil
}

func (s *SessionService) currentStamp(ctx context.Context, accountID string) (string, error) {
	if s.stampCache != nil {
		stamp, err := s.stampCache.GetStamp(ctx, accountID)
		if err == nil {
			return stamp, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("stamp cache read failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
	}

	credential, err := s.credentials.GetByAccountID(ctx, accountID)
	if err != nil {
		return "", err
	}

	if s.stampCache != nil {
		if err := s.stampCache.SetStamp(ctx, accountID, credential.SecurityStamp, s.stampTTL); err != nil {
			s.logger.Warn("stamp cache write failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
	}

	return credential.SecurityStamp, nil
}
