// Package cache holds read-through Redis caches in front of repositories.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/repository"
)

const (
	profileKeyPrefix = "fishtank:profile:"
	contactKeyPrefix = "fishtank:contact:"
)

// ProfileCache caches requester profiles and contacts. Enrichment looks up
// the same requesters on every snapshot, so most lookups are hits.
// Cache failures fall back to the wrapped repository.
type ProfileCache struct {
	next  repository.ProfileRepository
	redis *redis.Client
	ttl   time.Duration
}

func NewProfileCache(next repository.ProfileRepository, client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{next: next, redis: client, ttl: ttl}
}

func (c *ProfileCache) GetProfile(ctx context.Context, userID string) (*domain.RequesterProfile, error) {
	var p domain.RequesterProfile
	if c.load(ctx, profileKeyPrefix+userID, &p) {
		p.UserID = userID
		return &p, nil
	}
	fresh, err := c.next.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profileKeyPrefix+userID, fresh)
	return fresh, nil
}

func (c *ProfileCache) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	var ct domain.Contact
	if c.load(ctx, contactKeyPrefix+userID, &ct) {
		ct.UserID = userID
		return &ct, nil
	}
	fresh, err := c.next.GetContact(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, contactKeyPrefix+userID, fresh)
	return fresh, nil
}

// Invalidate drops the cached entries of a user.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return c.redis.Del(ctx, profileKeyPrefix+userID, contactKeyPrefix+userID).Err()
}

func (c *ProfileCache) load(ctx context.Context, key string, v any) bool {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Profile cache read failed", "key", key, "error", err)
		}
		return false
	}
	return json.Unmarshal(val, v) == nil
}

func (c *ProfileCache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Profile cache write failed", "key", key, "error", err)
	}
}
