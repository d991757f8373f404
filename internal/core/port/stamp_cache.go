package port

import (
	"context"
	"time"
)

// SecurityStampCache provides a low-latency read path for the current
// credential security stamp during access-token verification. Misses fall
// back to the credential repository; entries are dropped on rotation.
type SecurityStampCache interface {
	GetStamp(ctx context.Context, accountID string) (string, error)
	SetStamp(ctx context.Context, accountID, stamp string, ttl time.Duration) error
	DeleteStamp(ctx context.Context, accountID string) error
}
