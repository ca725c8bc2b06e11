package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultAttemptWindow = 15 * time.Minute

type attemptEntry struct {
	failures  int
	expiresAt time.Time
}

// MemoryAttemptLimiter keeps failure counters in process. The window starts
// at the first failure and is not extended by later ones.
type MemoryAttemptLimiter struct {
	mu          sync.Mutex
	maxFailures int
	window      time.Duration
	entries     map[string]attemptEntry
	Now         func() time.Time
}

func NewMemoryAttemptLimiter(maxFailures int, window time.Duration) *MemoryAttemptLimiter {
	if window <= 0 {
		window = defaultAttemptWindow
	}
	return &MemoryAttemptLimiter{
		maxFailures: maxFailures,
		window:      window,
		entries:     map[string]attemptEntry{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryAttemptLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("core: attempt limiter is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("core: attempt key is required")
	}
	if l.maxFailures <= 0 {
		return true, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return true, nil
	}
	if !now.Before(entry.expiresAt) {
		delete(l.entries, key)
		return true, nil
	}
	return entry.failures < l.maxFailures, nil
}

func (l *MemoryAttemptLimiter) RecordFailure(_ context.Context, key string) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("core: attempt limiter is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, fmt.Errorf("core: attempt key is required")
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneExpiredLocked(now)
	entry, ok := l.entries[key]
	if !ok {
		entry = attemptEntry{expiresAt: now.Add(l.window)}
	}
	entry.failures++
	l.entries[key] = entry
	return entry.failures, nil
}

func (l *MemoryAttemptLimiter) Reset(_ context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("core: attempt limiter is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, strings.TrimSpace(key))
	return nil
}

func (l *MemoryAttemptLimiter) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryAttemptLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.entries {
		if !now.Before(entry.expiresAt) {
			delete(l.entries, key)
		}
	}
}
