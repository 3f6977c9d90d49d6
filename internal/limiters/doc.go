// Package limiters enforces sliding-window rate limits for the
// credential lifecycle.
//
// The limits are shared, mutable state keyed by request origin. With a
// Redis client the window is evaluated by redis_rate (GCRA) so all
// replicas share one budget; without one, a synchronized in-process
// fallback with TTL eviction applies, which is per-replica but never a
// process-global mutable map.
package limiters
