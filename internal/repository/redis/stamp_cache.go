package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/repository"
)

const defaultStampPrefix = "idp:security_stamp"

// SecurityStampCache caches per-account security stamps for low-latency
// access-token verification.
type SecurityStampCache struct {
	client *red.Client
	prefix string
}

// NewSecurityStampCache constructs a security stamp cache helper.
func NewSecurityStampCache(client *red.Client, keyPrefix string) *SecurityStampCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultStampPrefix
	}

	return &SecurityStampCache{client: client, prefix: prefix}
}

// GetStamp fetches the cached stamp, returning ErrNotFound on cache miss.
func (c *SecurityStampCache) GetStamp(ctx context.Context, accountID string) (string, error) {
	key := c.key(accountID)
	if key == "" {
		return "", fmt.Errorf("account id is required")
	}

	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis get security stamp: %w", err)
	}

	return value, nil
}

// SetStamp stores the stamp with the provided TTL.
func (c *SecurityStampCache) SetStamp(ctx context.Context, accountID, stamp string, ttl time.Duration) error {
	key := c.key(accountID)
	if key == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(stamp) == "" {
		return fmt.Errorf("stamp is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	if err := c.client.Set(ctx, key, stamp, ttl).Err(); err != nil {
		return fmt.Errorf("redis set security stamp: %w", err)
	}
	return nil
}

// DeleteStamp removes the cached stamp entry. Callers invoke this on stamp
// rotation so stale values never outlive a revocation.
func (c *SecurityStampCache) DeleteStamp(ctx context.Context, accountID string) error {
	key := c.key(accountID)
	if key == "" {
		return fmt.Errorf("account id is required")
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete security stamp: %w", err)
	}
	return nil
}

func (c *SecurityStampCache) key(accountID string) string {
	trimmed := strings.TrimSpace(accountID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}

var _ port.SecurityStampCache = (*SecurityStampCache)(nil)
