package limiters

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localLimiter is the in-process fallback: a synchronized map of token
// buckets with last-seen timestamps, evicted once idle for longer than
// their window. State is per replica, which is acceptable for the
// single-process deployments that run without Redis.
type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	sweepAt time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	period   time.Duration
	lastSeen time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		buckets: make(map[string]*localBucket),
		sweepAt: time.Now(),
	}
}

func (l *localLimiter) allow(key string, w Window) (time.Duration, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictStale(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{
			limiter: rate.NewLimiter(rate.Every(w.Period/time.Duration(w.Max)), w.Max),
			period:  w.Period,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return delay, ErrLimited
	}
	return 0, nil
}

// evictStale drops buckets idle for longer than their own window. Runs
// at most once per minute, under the lock.
func (l *localLimiter) evictStale(now time.Time) {
	if now.Sub(l.sweepAt) < time.Minute {
		return
	}
	l.sweepAt = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > b.period {
			delete(l.buckets, key)
		}
	}
}
