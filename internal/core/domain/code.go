package domain

import "time"

// CodePurpose tags a verification code with the flow it belongs to.
type CodePurpose string

const (
	CodePurposeRegistration  CodePurpose = "registration"
	CodePurposeLogin2FA      CodePurpose = "login_2fa"
	CodePurposePasswordReset CodePurpose = "password_reset"
	CodePurposeVerifyEmail   CodePurpose = "verify_email"
	CodePurposeSudo          CodePurpose = "sudo"
)

// VerificationCode is a short-lived, single-use, out-of-band proof of
// possession tied to an identifier and a purpose. At most one active code
// exists per (identifier, purpose) pair.
type VerificationCode struct {
	ID         string
	Identifier string
	Code       string
	Purpose    CodePurpose
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the code can still be redeemed.
func (c VerificationCode) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
