package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lessonforge/internal/text"
)

// RedisClient is the subset of go-redis the limiter uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
}

type RedisLimiter struct {
	client RedisClient
	limits Limits
	now    func() time.Time
}

func NewRedisLimiter(client RedisClient, limits Limits) *RedisLimiter {
	return &RedisLimiter{client: client, limits: limits, now: time.Now}
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func redisKey(userID string, kind text.Origin, day string) string {
	return fmt.Sprintf("quota:%s:%s:%s", userID, kind, day)
}

func (l *RedisLimiter) CheckQuota(ctx context.Context, userID string, kind text.Origin) (Decision, error) {
	limit, err := l.limits.limitFor(kind)
	if err != nil {
		return Decision{}, err
	}
	d, resetAt := day(l.now())

	used := 0
	raw, err := l.client.Get(ctx, redisKey(userID, kind, d)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return Decision{}, fmt.Errorf("failed to read quota counter: %w", err)
	default:
		used, err = strconv.Atoi(raw)
		if err != nil {
			return Decision{}, fmt.Errorf("corrupt quota counter %q: %w", raw, err)
		}
	}
	return decide(used, limit, resetAt), nil
}

func (l *RedisLimiter) RecordUsage(ctx context.Context, userID string, kind text.Origin) error {
	if _, err := l.limits.limitFor(kind); err != nil {
		return err
	}
	d, resetAt := day(l.now())
	key := redisKey(userID, kind, d)

	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment quota counter: %w", err)
	}
	if n == 1 {
		if err := l.client.ExpireAt(ctx, key, resetAt).Err(); err != nil {
			return fmt.Errorf("failed to set quota expiry: %w", err)
		}
	}
	return nil
}
