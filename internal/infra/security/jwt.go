package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/avelor/identity-auth/internal/core/domain"
)

var (
	// ErrInvalidAccessToken indicates the token is malformed or its signature failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the token elapsed its validity window.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// AccessTokenClaims binds account identity, role, and the credential security
// stamp captured at issuance time.
type AccessTokenClaims struct {
	AccountID     string `json:"uid"`
	DisplayName   string `json:"name,omitempty"`
	Role          string `json:"role,omitempty"`
	SecurityStamp string `json:"stp"`
	jwt.RegisteredClaims
}

// TokenIssuer mints signed access tokens and opaque refresh tokens.
type TokenIssuer struct {
	keyProvider KeyProvider
	kid         string
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. TTLs fall back to 15 minutes for
// access tokens and 7 days for refresh tokens when unset.
func NewTokenIssuer(keyProvider KeyProvider, kid, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if keyProvider == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if strings.TrimSpace(kid) == "" {
		return nil, fmt.Errorf("kid is required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &TokenIssuer{
		keyProvider: keyProvider,
		kid:         kid,
		issuer:      issuer,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		now:         time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// AccessTokenExpiry returns the expiry an access token issued now would carry.
func (t *TokenIssuer) AccessTokenExpiry() time.Time {
	return t.now().UTC().Add(t.accessTTL)
}

// RefreshTokenExpiry returns the expiry a refresh token issued now would carry.
func (t *TokenIssuer) RefreshTokenExpiry() time.Time {
	return t.now().UTC().Add(t.refreshTTL)
}

// IssueAccessToken signs a short-lived assertion for the account. The
// supplied security stamp is embedded so verification can honor revoke-all.
func (t *TokenIssuer) IssueAccessToken(account domain.Account, stamp string) (string, error) {
	if account.ID == "" {
		return "", fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(stamp) == "" {
		return "", fmt.Errorf("security stamp is required")
	}

	now := t.now().UTC()
	claims := AccessTokenClaims{
		AccountID:     account.ID,
		DisplayName:   account.DisplayName,
		Role:          account.Role,
		SecurityStamp: stamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = t.kid

	signingKey, err := t.keyProvider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// IssueRefreshToken returns a high-entropy opaque string carrying no claims.
// It is validated only by store lookup, never parsed.
func (t *TokenIssuer) IssueRefreshToken() (string, error) {
	return GenerateSecureToken(32)
}

// ParseAccessToken validates the signature and registered claims and returns
// the embedded claims. Callers must still compare the stamp claim against the
// current stored stamp; signature validity alone does not authenticate.
func (t *TokenIssuer) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}

		kid, ok := tok.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		return t.keyProvider.GetVerificationKey(kid)
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
