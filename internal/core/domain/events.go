package domain

import "time"

// SessionRevokedEvent is published after a global session revocation.
type SessionRevokedEvent struct {
	EventID       string         `json:"event_id"`
	AccountID     string         `json:"account_id"`
	RevokedAt     time.Time      `json:"revoked_at"`
	Reason        string         `json:"reason"`
	TokensRevoked int            `json:"tokens_revoked"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PasswordChangedEvent is published after a successful password change.
type PasswordChangedEvent struct {
	EventID   string         `json:"event_id"`
	AccountID string         `json:"account_id"`
	ChangedAt time.Time      `json:"changed_at"`
	ChangedBy string         `json:"changed_by"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// VerificationCodeIssuedEvent hands a freshly persisted code off to the
// notification service for out-of-band delivery.
type VerificationCodeIssuedEvent struct {
	EventID     string    `json:"event_id"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"display_name"`
	Code        string    `json:"code"`
	Purpose     string    `json:"purpose"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
