package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "devices:claim_attempts"
	DefaultWindow    = 15 * time.Minute
)

type Option func(*RedisAttemptLimiter)

func WithKeyPrefix(prefix string) Option {
	return func(l *RedisAttemptLimiter) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithFailOpen lets claims through when redis cannot be reached.
func WithFailOpen(enabled bool) Option {
	return func(l *RedisAttemptLimiter) {
		l.failOpen = enabled
	}
}

// RedisAttemptLimiter shares failed claim counters between instances. The
// first failure inside a window sets the key expiry in the same script that
// increments it.
type RedisAttemptLimiter struct {
	client      redis.Cmdable
	maxFailures int
	window      time.Duration
	prefix      string
	failOpen    bool
}

func NewRedisAttemptLimiter(client redis.Cmdable, maxFailures int, window time.Duration, opts ...Option) (*RedisAttemptLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	limiter := &RedisAttemptLimiter{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
		prefix:      DefaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(limiter)
		}
	}
	return limiter, nil
}

func (l *RedisAttemptLimiter) Key(key string) string {
	return l.prefix + ":" + strings.TrimSpace(key)
}

func (l *RedisAttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("ratelimit: attempt key is required")
	}
	if l.maxFailures <= 0 {
		return true, nil
	}
	raw, err := l.client.Get(ctx, l.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		if l.failOpen {
			return true, nil
		}
		return false, fmt.Errorf("ratelimit: read attempts: %w", err)
	}
	failures, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("ratelimit: invalid attempt counter %q: %w", raw, err)
	}
	return failures < l.maxFailures, nil
}

// recordFailureScript bumps the counter and sets the window in one round
// trip. A counter found without a TTL gets one as well.
var recordFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

func (l *RedisAttemptLimiter) RecordFailure(ctx context.Context, key string) (int, error) {
	if strings.TrimSpace(key) == "" {
		return 0, fmt.Errorf("ratelimit: attempt key is required")
	}
	count, err := recordFailureScript.Run(ctx, l.client, []string{l.Key(key)}, l.window.Milliseconds()).Int64()
	if err != nil {
		if l.failOpen {
			return 0, nil
		}
		return 0, fmt.Errorf("ratelimit: record attempt: %w", err)
	}
	return int(count), nil
}

func (l *RedisAttemptLimiter) Reset(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("ratelimit: attempt key is required")
	}
	if err := l.client.Del(ctx, l.Key(key)).Err(); err != nil && !l.failOpen {
		return fmt.Errorf("ratelimit: reset attempts: %w", err)
	}
	return nil
}

var _ core.ClaimAttemptLimiter = (*RedisAttemptLimiter)(nil)
