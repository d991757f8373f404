package domain

import "time"

// AccountStatus enumerates possible account lifecycle states.
type AccountStatus string

const (
	AccountStatusActive          AccountStatus = "active"
	AccountStatusBanned          AccountStatus = "banned"
	AccountStatusSuspended       AccountStatus = "suspended"
	AccountStatusPendingDeletion AccountStatus = "pending_deletion"
	AccountStatusDeactivated     AccountStatus = "deactivated"
)

// Account mirrors the persisted representation in the accounts table.
// Profile data beyond what the auth core needs lives with the profile service.
type Account struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	Role        string
	Status      AccountStatus
	LastLoginAt *time.Time
}

// IsBanned reports whether the account is administratively locked out.
func (a Account) IsBanned() bool {
	return a.Status == AccountStatusBanned
}

// CanAuthenticate reports whether the account may establish or keep a session.
// Suspended and pending-deletion accounts stay eligible so the owner can
// self-recover; only a ban is a hard lockout.
func (a Account) CanAuthenticate() bool {
	return !a.IsBanned()
}
