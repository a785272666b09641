package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/djsoulspotti-ops/skajla/utils/cache"
)

const (
	// LockoutThreshold is the number of consecutive failures that triggers a lock.
	LockoutThreshold = 5
	// LockoutDuration is how long the email stays locked.
	LockoutDuration = 900 * time.Second
	// lockoutWindow is the rolling window the failure counter lives in.
	lockoutWindow = 5 * time.Minute
)

// LoginLockout tracks consecutive failed logins per email in redis and locks
// the account for 15 minutes after five failures. Counting per email (not per
// IP) matches how the lockout is surfaced to the user: 429 with
// locked_until_minutes.
type LoginLockout struct {
	redisCache *cache.RedisCache
}

// NewLoginLockout creates a new lockout tracker
func NewLoginLockout(redisCache *cache.RedisCache) *LoginLockout {
	return &LoginLockout{redisCache: redisCache}
}

func attemptKey(email string) string { return fmt.Sprintf("lockout:attempts:%s", email) }
func lockKey(email string) string    { return fmt.Sprintf("lockout:lock:%s", email) }

// LockedFor returns the remaining lock duration for an email, zero if the
// email is not locked. Redis being down never blocks logins.
func (l *LoginLockout) LockedFor(ctx context.Context, email string) time.Duration {
	if l == nil || l.redisCache == nil {
		return 0
	}
	locked, err := l.redisCache.Exists(ctx, lockKey(email))
	if err != nil || !locked {
		return 0
	}
	ttl, err := l.redisCache.TTL(ctx, lockKey(email))
	if err != nil || ttl < 0 {
		return time.Minute
	}
	return ttl
}

// RecordFailure bumps the failure counter and applies the lock at the
// threshold. Returns the attempt count.
func (l *LoginLockout) RecordFailure(ctx context.Context, email string) int64 {
	if l == nil || l.redisCache == nil {
		return 0
	}
	attempts, err := l.redisCache.IncrementWithTTL(ctx, attemptKey(email), lockoutWindow)
	if err != nil {
		return 0
	}

	if attempts >= LockoutThreshold {
		_ = l.redisCache.Set(ctx, lockKey(email), "locked", LockoutDuration)
	}
	return attempts
}

// RecordSuccess resets the counter and any lock on successful login.
func (l *LoginLockout) RecordSuccess(ctx context.Context, email string) {
	if l == nil || l.redisCache == nil {
		return
	}
	_ = l.redisCache.Delete(ctx, attemptKey(email), lockKey(email))
}
