package domain

import "time"

// Credential is the one-to-one password record owned by an account.
// The security stamp is an opaque value rotated to invalidate every
// previously issued access token at once.
type Credential struct {
	AccountID     string
	PasswordHash  string
	PasswordSalt  string
	SecurityStamp string
	UpdatedAt     time.Time
}
