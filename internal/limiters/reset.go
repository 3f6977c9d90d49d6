package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited carries no retry hint; use the RetryAfter returned
	// alongside it.
	ErrLimited = errors.New("rate limited")
	// ErrUnavailable marks a Redis failure. Limit checks fail closed on
	// it: the caller must treat it as a storage failure, not as an
	// allowance.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Window is one sliding-window budget: at most Max burst attempts,
// refilled continuously at Max per Period. GCRA admits one extra
// attempt every Period/Max rather than clearing the whole budget at a
// window boundary, so slow drips stay admitted while bursts beyond Max
// are refused immediately.
type Window struct {
	Max    int
	Period time.Duration
}

// Config holds the reset limiter budgets.
type Config struct {
	// Confirm applies per caller origin to ConfirmPasswordReset, before
	// any token state is disclosed.
	Confirm Window
	// Request applies per identifier to RequestPasswordReset to bound
	// outbound notifications.
	Request Window
}

// ResetLimiter enforces the reset budgets. With a Redis client the
// window is GCRA-evaluated by redis_rate; otherwise a per-process
// fallback applies.
type ResetLimiter struct {
	cfg      Config
	rate     *redis_rate.Limiter
	fallback *localLimiter
}

func NewResetLimiter(redisClient redis.UniversalClient, cfg Config) *ResetLimiter {
	l := &ResetLimiter{cfg: cfg}
	if redisClient != nil {
		l.rate = redis_rate.NewLimiter(redisClient)
	} else {
		l.fallback = newLocalLimiter()
	}
	return l
}

// AllowConfirm checks the per-origin confirm budget. On denial it
// returns ErrLimited and the duration after which one attempt will be
// admitted again.
func (l *ResetLimiter) AllowConfirm(ctx context.Context, origin string) (time.Duration, error) {
	return l.allow(ctx, "rlc:"+origin, l.cfg.Confirm)
}

// AllowRequest checks the per-identifier request budget.
func (l *ResetLimiter) AllowRequest(ctx context.Context, identifier string) (time.Duration, error) {
	return l.allow(ctx, "rlr:"+identifier, l.cfg.Request)
}

func (l *ResetLimiter) allow(ctx context.Context, key string, w Window) (time.Duration, error) {
	if w.Max <= 0 || w.Period <= 0 {
		return 0, nil
	}

	if l.rate != nil {
		res, err := l.rate.Allow(ctx, key, redis_rate.Limit{
			Rate:   w.Max,
			Burst:  w.Max,
			Period: w.Period,
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if res.Allowed == 0 {
			return res.RetryAfter, ErrLimited
		}
		return 0, nil
	}

	return l.fallback.allow(key, w)
}
