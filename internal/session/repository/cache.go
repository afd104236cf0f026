package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/session/domain"
)

const keyPrefix = "tenantdesk:session:"

// Cache is the subset of the Redis client the session cache needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// CachedRepository fronts a Repository with a cache-aside Redis layer for GetByID.
// Every write through it invalidates the cached entry; cache failures only log.
type CachedRepository struct {
	Repository
	cache Cache
	ttl   time.Duration
}

// NewCachedRepository wraps next. A nil cache returns next unchanged.
func NewCachedRepository(next Repository, cache Cache, ttl time.Duration) Repository {
	if cache == nil {
		return next
	}
	return &CachedRepository{Repository: next, cache: cache, ttl: ttl}
}

func cacheKey(id string) string { return keyPrefix + id }

func userKey(userID int64) string { return keyPrefix + "user:" + strconv.FormatInt(userID, 10) }

// GetByID serves from Redis when possible and fills the cache on a miss.
func (c *CachedRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	key := cacheKey(id)
	data, err := c.cache.Get(ctx, key).Result()
	if err == nil && data != "" {
		var s domain.Session
		if err := sonic.UnmarshalString(data, &s); err == nil {
			return &s, nil
		}
		logger.L().Warnw("session cache: failed to decode entry", "key", key, "error", err)
	} else if err != nil && !errors.Is(err, redis.Nil) {
		logger.L().Warnw("session cache: get failed", "key", key, "error", err)
	}

	s, err := c.Repository.GetByID(ctx, id)
	if err != nil || s == nil {
		return s, err
	}
	if encoded, err := sonic.MarshalString(s); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			logger.L().Warnw("session cache: set failed", "key", key, "error", err)
		} else {
			c.track(ctx, s.UserID, id)
		}
	}
	return s, nil
}

func (c *CachedRepository) Revoke(ctx context.Context, id string) error {
	defer c.invalidate(ctx, id)
	return c.Repository.Revoke(ctx, id)
}

// RevokeAllByUser revokes in the database, then drops every cached session of the user.
func (c *CachedRepository) RevokeAllByUser(ctx context.Context, userID int64) error {
	if err := c.Repository.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	ids, err := c.cache.SMembers(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.L().Warnw("session cache: list user sessions failed", "user_id", userID, "error", err)
	}
	keys := []string{userKey(userID)}
	for _, id := range ids {
		keys = append(keys, cacheKey(id))
	}
	if err := c.cache.Del(ctx, keys...).Err(); err != nil {
		logger.L().Warnw("session cache: invalidate user sessions failed", "user_id", userID, "error", err)
	}
	return nil
}

func (c *CachedRepository) SetOrganization(ctx context.Context, id string, orgID int64) error {
	defer c.invalidate(ctx, id)
	return c.Repository.SetOrganization(ctx, id, orgID)
}

func (c *CachedRepository) UpdateRefreshToken(ctx context.Context, id, jti, refreshTokenHash string) error {
	defer c.invalidate(ctx, id)
	return c.Repository.UpdateRefreshToken(ctx, id, jti, refreshTokenHash)
}

// track remembers which session ids are cached for a user so they can be dropped together.
func (c *CachedRepository) track(ctx context.Context, userID int64, id string) {
	key := userKey(userID)
	if err := c.cache.SAdd(ctx, key, id).Err(); err != nil {
		logger.L().Warnw("session cache: track failed", "key", key, "error", err)
		return
	}
	_ = c.cache.Expire(ctx, key, c.ttl).Err()
}

func (c *CachedRepository) invalidate(ctx context.Context, id string) {
	if err := c.cache.Del(ctx, cacheKey(id)).Err(); err != nil {
		logger.L().Warnw("session cache: invalidate failed", "key", cacheKey(id), "error", err)
	}
}
