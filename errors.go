package accesscore

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. Authorization and validation failures are recoverable
// at the caller; ErrStorageFailure aborts the whole operation and is
// never downgraded, because a mutation without its audit entry is worse
// than a failed mutation.
var (
	// ErrUnauthenticated means no valid session could be resolved from
	// the presented credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized is the single caller-visible denial. The predicate
	// that failed is recorded in the audit ledger, never surfaced.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidationFailed covers malformed input and policy violations.
	ErrValidationFailed = errors.New("validation failed")
	// ErrNotFoundOrExpired deliberately conflates a missing token with an
	// expired or already-consumed one to prevent enumeration.
	ErrNotFoundOrExpired = errors.New("invalid or expired token")
	// ErrRateLimited is the match target for RateLimitedError.
	ErrRateLimited = errors.New("rate limited")
	// ErrStorageFailure means the persistent store was unreachable or an
	// audit append failed for an otherwise-successful mutation.
	ErrStorageFailure = errors.New("storage failure")

	// ErrUserNotFound is internal to the engine; anti-enumeration paths
	// must map it to a generic success or to ErrNotFoundOrExpired before
	// anything reaches a caller.
	ErrUserNotFound = errors.New("user not found")

	// ErrPasswordPolicy and ErrPasswordReuse are ErrValidationFailed
	// specializations.
	ErrPasswordPolicy = fmt.Errorf("%w: password policy violation", ErrValidationFailed)
	ErrPasswordReuse  = fmt.Errorf("%w: password matches recent history", ErrValidationFailed)

	// Two-factor state machine failures.
	ErrTwoFactorNotEnrolled    = errors.New("two-factor not enrolled")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	ErrTwoFactorInvalidCode    = errors.New("invalid two-factor code")

	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitedError carries the retry-after hint for a rate-limited
// attempt. It matches ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
