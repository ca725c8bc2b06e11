package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type stubRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	values  map[string]int64
	expires map[string]time.Duration
	evals   int
	err     error
}

func newStubRedis() *stubRedis {
	return &stubRedis{values: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (s *stubRedis) Get(_ context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return redis.NewStringResult("", s.err)
	}
	value, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(strconv.FormatInt(value, 10), nil)
}

func (s *stubRedis) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.Eval(ctx, "", keys, args...)
}

// Eval runs the failure counter script against the in-memory values.
func (s *stubRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals++
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	key := keys[0]
	s.values[key]++
	if _, ok := s.expires[key]; !ok {
		s.expires[key] = time.Duration(args[0].(int64)) * time.Millisecond
	}
	return redis.NewCmdResult(s.values[key], nil)
}

func (s *stubRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return redis.NewIntResult(0, s.err)
	}
	for _, key := range keys {
		delete(s.values, key)
		delete(s.expires, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestNewRedisAttemptLimiter_RequiresClient(t *testing.T) {
	if _, err := NewRedisAttemptLimiter(nil, 5, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisAttemptLimiter_BlocksAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	client := newStubRedis()
	limiter, err := NewRedisAttemptLimiter(client, 3, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	for i := 1; i <= 3; i++ {
		allowed, err := limiter.Allow(ctx, "claim:user-7")
		if err != nil || !allowed {
			t.Fatalf("attempt %d: expected allowed, got %v %v", i, allowed, err)
		}
		count, err := limiter.RecordFailure(ctx, "claim:user-7")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}
	allowed, err := limiter.Allow(ctx, "claim:user-7")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter to block after 3 failures")
	}
	if client.expires["devices:claim_attempts:claim:user-7"] != time.Minute {
		t.Fatalf("expected window expiry on first failure, got %v", client.expires)
	}

	if err := limiter.Reset(ctx, "claim:user-7"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	allowed, err = limiter.Allow(ctx, "claim:user-7")
	if err != nil || !allowed {
		t.Fatalf("expected allowed after reset, got %v %v", allowed, err)
	}
}

func TestRedisAttemptLimiter_DisabledWhenMaxIsZero(t *testing.T) {
	client := newStubRedis()
	client.err = errors.New("unreachable")
	limiter, err := NewRedisAttemptLimiter(client, 0, 0)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	allowed, err := limiter.Allow(context.Background(), "claim:user-1")
	if err != nil || !allowed {
		t.Fatalf("expected disabled limiter to allow, got %v %v", allowed, err)
	}
	if limiter.window != DefaultWindow {
		t.Fatalf("expected default window, got %v", limiter.window)
	}
}

func TestRedisAttemptLimiter_FailClosedAndFailOpen(t *testing.T) {
	ctx := context.Background()
	client := newStubRedis()
	client.err = errors.New("connection refused")

	closed, _ := NewRedisAttemptLimiter(client, 3, time.Minute)
	if _, err := closed.Allow(ctx, "claim:user-1"); err == nil {
		t.Fatalf("expected fail-closed limiter to surface redis error")
	}
	if _, err := closed.RecordFailure(ctx, "claim:user-1"); err == nil {
		t.Fatalf("expected fail-closed record to surface redis error")
	}

	open, _ := NewRedisAttemptLimiter(client, 3, time.Minute, WithFailOpen(true))
	allowed, err := open.Allow(ctx, "claim:user-1")
	if err != nil || !allowed {
		t.Fatalf("expected fail-open limiter to allow, got %v %v", allowed, err)
	}
	if err := open.Reset(ctx, "claim:user-1"); err != nil {
		t.Fatalf("expected fail-open reset to swallow error: %v", err)
	}
}

func TestRedisAttemptLimiter_KeyPrefixAndBlankKey(t *testing.T) {
	limiter, _ := NewRedisAttemptLimiter(newStubRedis(), 3, time.Minute, WithKeyPrefix("tenant-a:attempts"))
	if got := limiter.Key(" claim:user-1 "); got != "tenant-a:attempts:claim:user-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if _, err := limiter.Allow(context.Background(), " "); err == nil {
		t.Fatalf("expected error for blank key")
	}
	if _, err := limiter.RecordFailure(context.Background(), ""); err == nil {
		t.Fatalf("expected error for blank key")
	}
}

func TestRedisAttemptLimiter_RecordFailureSetsWindowAtomically(t *testing.T) {
	ctx := context.Background()
	client := newStubRedis()
	limiter, err := NewRedisAttemptLimiter(client, 3, 2*time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	redisKey := limiter.Key("claim:user-9")
	client.values[redisKey] = 1

	count, err := limiter.RecordFailure(ctx, "claim:user-9")
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if client.expires[redisKey] != 2*time.Minute {
		t.Fatalf("expected counter without ttl to get the window, got %v", client.expires[redisKey])
	}
	if client.evals != 1 {
		t.Fatalf("expected one script call per failure, got %d", client.evals)
	}

	client.err = errors.New("connection reset")
	open, _ := NewRedisAttemptLimiter(client, 3, time.Minute, WithFailOpen(true))
	count, err = open.RecordFailure(ctx, "claim:user-9")
	if err != nil || count != 0 {
		t.Fatalf("expected fail-open record to swallow error, got %d %v", count, err)
	}
}
