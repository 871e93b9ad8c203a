// Package ratelimit throttles failed logins with Redis fixed-window counters
// keyed by email and by client IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited = errors.New("ratelimit: too many attempts")
	ErrUnavailable = errors.New("ratelimit: redis unavailable")
)

type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter is safe to use as a nil pointer; every method then allows the call.
type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &Limiter{rdb: rdb, cfg: cfg}
}

func emailKey(email string) string { return "learnhub:login:email:" + strings.ToLower(strings.TrimSpace(email)) }
func ipKey(ip string) string       { return "learnhub:login:ip:" + ip }

func (l *Limiter) keys(email, ip string) []string {
	keys := []string{emailKey(email)}
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}
	return keys
}

// Check fails with ErrRateLimited once either counter has used up its budget
// for the current window.
func (l *Limiter) Check(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	for _, k := range l.keys(email, ip) {
		n, err := l.rdb.Get(ctx, k).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n >= int64(l.cfg.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordFailure counts one failed attempt. The window starts at the first
// failure and lasts Cooldown.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	for _, k := range l.keys(email, ip) {
		n, err := l.rdb.Incr(ctx, k).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n == 1 {
			if err := l.rdb.Expire(ctx, k, l.cfg.Cooldown).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.rdb.Del(ctx, l.keys(email, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RetryAfter reports how long the email counter has left in its window.
func (l *Limiter) RetryAfter(ctx context.Context, email string) time.Duration {
	if l == nil {
		return 0
	}
	d, err := l.rdb.TTL(ctx, emailKey(email)).Result()
	if err != nil || d < 0 {
		return 0
	}
	return d
}
