package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bandonotifier/internal/entity"

	"github.com/redis/go-redis/v9"
)

const _settingsKeyPrefix = "settings:"

// SettingsCache is a read-through cache for per-user notification settings.
// The sweep reads settings once per responsible-party group per tick, so a
// short TTL keeps the database out of the hot path without risking stale
// profiles for long.
type SettingsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSettingsCache(rdb *redis.Client, ttl time.Duration) *SettingsCache {
	return &SettingsCache{rdb: rdb, ttl: ttl}
}

func (c *SettingsCache) key(email string) string {
	return _settingsKeyPrefix + email
}

// Get returns the cached profile or entity.ErrDataNotFound on a miss.
func (c *SettingsCache) Get(ctx context.Context, email string) (*entity.NotificationSettings, error) {
	const op = "repository.SettingsCache.Get"

	cached, err := c.rdb.Get(ctx, c.key(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var settings entity.NotificationSettings
	if err := json.Unmarshal([]byte(cached), &settings); err != nil {
		return nil, fmt.Errorf("%s: unmarshal json: %w", op, err)
	}

	return &settings, nil
}

func (c *SettingsCache) Set(ctx context.Context, settings *entity.NotificationSettings) error {
	const op = "repository.SettingsCache.Set"

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%s: marshal json: %w", op, err)
	}

	if err := c.rdb.Set(ctx, c.key(settings.UserEmail), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *SettingsCache) Invalidate(ctx context.Context, email string) error {
	const op = "repository.SettingsCache.Invalidate"

	if err := c.rdb.Del(ctx, c.key(email)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
