package domain

import "time"

// RefreshToken represents a persisted refresh token (stored as a hash).
// The raw value is a capability handed to the client exactly once.
type RefreshToken struct {
	TokenHash  string
	AccountID  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	DeviceInfo *string
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// TokenPair is the result of a successful login or rotation.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}
