package port

import "context"

// Notifier is the out-of-band delivery capability owned by the notification
// service. The code must be durably persisted before SendVerificationMessage
// is invoked; a delivery failure leaves a valid-but-unsent code behind.
type Notifier interface {
	IsEnabled() bool
	SendVerificationMessage(ctx context.Context, target, displayName, code string) error
}
