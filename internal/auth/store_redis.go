// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carelinkhq/carelink/internal/platform/constants"
)

// # OAuth State Cache

// RedisStateCache implements [StateCache] using Redis.
//
// A state key proves that this deployment started the OAuth round-trip being
// completed. The key's value carries the role requested at initiate time; no
// other payload exists.
type RedisStateCache struct {
	client *redis.Client
}

// NewStateCache creates a Redis-backed [StateCache].
func NewStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

/*
Set stores a state key with the requested role and a short TTL.

Parameters:
  - ctx: context.Context
  - state: string
  - role: string
  - ttl: time.Duration

Returns:
  - error: Cache connectivity failures
*/
func (cache *RedisStateCache) Set(ctx context.Context, state, role string, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthState + state

	if err := cache.client.Set(ctx, key, role, ttl).Err(); err != nil {
		return fmt.Errorf("redis_state_cache_set_failed: %w", err)
	}

	return nil
}

/*
Redeem atomically fetches and deletes the state key via GETDEL, so of two
concurrent redemptions exactly one observes the key.

Parameters:
  - ctx: context.Context
  - state: string

Returns:
  - string: The role stored at initiate time ("" when none was requested)
  - bool: Whether the state existed
  - error: Cache connectivity failures
*/
func (cache *RedisStateCache) Redeem(ctx context.Context, state string) (string, bool, error) {
	key := constants.RedisPrefixOAuthState + state

	value, err := cache.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis_state_cache_redeem_failed: %w", err)
	}

	return value, true, nil
}
