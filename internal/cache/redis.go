package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	reminderListPrefix    = "reminders:subject:"
	reminderVersionPrefix = "reminders:version:"
	reminderListTTL       = 10 * time.Minute
	reminderVersionTTL    = 24 * time.Hour
)

// setIfCurrent writes the list only while the subject's version is unchanged.
// KEYS[1] list, KEYS[2] version; ARGV[1] expected version, ARGV[2] payload, ARGV[3] ttl in ms.
var setIfCurrent = redis.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// New connects to the redis server at url ("redis://host:6379/0") and pings it.
func New(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisListCache caches a subject's reminder list as JSON. Redis errors degrade to cache misses.
type RedisListCache struct {
	redis  redis.Cmdable
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewRedisListCache(client redis.Cmdable, logger logrus.FieldLogger) *RedisListCache {
	return &RedisListCache{redis: client, ttl: reminderListTTL, logger: logger}
}

func (c *RedisListCache) Get(ctx context.Context, userID, eventID string) ([]model.Reminder, bool) {
	cached, err := c.redis.Get(ctx, Key(userID, eventID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("Failed to read reminder list from Redis")
		}
		return nil, false
	}

	var reminders []model.Reminder
	if err := json.Unmarshal([]byte(cached), &reminders); err != nil {
		c.logger.WithError(err).Warn("Failed to unmarshal cached reminder list")
		return nil, false
	}
	return reminders, true
}

// Version reads the subject's invalidation counter. A missing counter is version 0.
func (c *RedisListCache) Version(ctx context.Context, userID, eventID string) (int64, bool) {
	version, err := c.redis.Get(ctx, VersionKey(userID, eventID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read reminder list version from Redis")
		return 0, false
	}
	return version, true
}

func (c *RedisListCache) Set(ctx context.Context, userID, eventID string, version int64, reminders []model.Reminder) {
	payload, err := json.Marshal(reminders)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal reminder list for caching")
		return
	}
	keys := []string{Key(userID, eventID), VersionKey(userID, eventID)}
	stored, err := setIfCurrent.Run(ctx, c.redis, keys, strconv.FormatInt(version, 10), payload, c.ttl.Milliseconds()).Int64()
	if err != nil {
		c.logger.WithError(err).Warn("Failed to write reminder list to cache")
		return
	}
	if stored == 0 {
		c.logger.WithFields(logrus.Fields{"user_id": userID, "event_id": eventID}).Debug("Reminder list changed while loading, not cached")
	}
}

// Invalidate drops the cached list and bumps the version in one transaction.
func (c *RedisListCache) Invalidate(ctx context.Context, userID, eventID string) {
	versionKey := VersionKey(userID, eventID)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, reminderVersionTTL)
		pipe.Del(ctx, Key(userID, eventID))
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Warn("Failed to invalidate cached reminder list")
	}
}

// Key is the redis key holding one subject's list.
func Key(userID, eventID string) string {
	return reminderListPrefix + userID + ":" + eventID
}

// VersionKey is the redis key holding one subject's invalidation counter.
func VersionKey(userID, eventID string) string {
	return reminderVersionPrefix + userID + ":" + eventID
}
