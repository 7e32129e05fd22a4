package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/auth-engine/internal/utils"
	"github.com/prperemyshlev/auth-engine/pkg/database"
)

const stateKeyPrefix = "oauth_state:"

// StateCache issues and verifies single-use OAuth state values backed by
// Redis, so callbacks can land on any instance behind a balancer.
type StateCache struct {
	redis *database.Redis
	ttl   time.Duration
}

func NewStateCache(redis *database.Redis, ttl time.Duration) *StateCache {
	return &StateCache{redis: redis, ttl: ttl}
}

// Issue mints a random state and stores it with the configured TTL.
func (c *StateCache) Issue(ctx context.Context) (string, error) {
	state, err := utils.GenerateOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	if err := c.redis.Client.Set(ctx, stateKeyPrefix+state, "1", c.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return state, nil
}

// Consume checks a state and burns it. A state verifies exactly once;
// replays and expired values report false.
func (c *StateCache) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	deleted, err := c.redis.Client.Del(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume state: %w", err)
	}
	return deleted > 0, nil
}
