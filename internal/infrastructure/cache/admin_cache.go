// Package cache keeps short-lived lookups out of the directory API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Admin status is cached for two hours: losing super-admin rarely happens
// and re-checking every page load hammers the directory API quota.
const adminStatusTTL = 2 * time.Hour

const adminKeyPrefix = "messagerecall:admin:"

type AdminCache struct {
	rdb *redis.Client
}

func NewAdminCache(rdb *redis.Client) *AdminCache {
	return &AdminCache{rdb: rdb}
}

// IsAdmin reports the cached admin status. ok is false on a cache miss.
func (c *AdminCache) IsAdmin(ctx context.Context, userEmail string) (isAdmin, ok bool, err error) {
	val, err := c.rdb.Get(ctx, adminKeyPrefix+userEmail).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("get cached admin status: %w", err)
	}
	return val == "1", true, nil
}

func (c *AdminCache) SetAdmin(ctx context.Context, userEmail string, isAdmin bool) error {
	val := "0"
	if isAdmin {
		val = "1"
	}
	if err := c.rdb.Set(ctx, adminKeyPrefix+userEmail, val, adminStatusTTL).Err(); err != nil {
		return fmt.Errorf("cache admin status: %w", err)
	}
	return nil
}
