// Package accesscore is the tenant-scoped access-control and
// credential-lifecycle core for multi-tenant account management.
//
// The Engine resolves session credentials into scoped identities,
// evaluates authorization policy over a closed role set, maintains an
// append-only audit ledger, runs the password-reset token lifecycle
// with sliding-window rate limits and reuse prevention, and manages
// TOTP two-factor enrollment.
//
// Construct an Engine with the Builder:
//
//	engine, err := accesscore.New().
//		WithConfig(accesscore.DefaultConfig()).
//		WithRedis(redisClient).
//		WithDirectory(directory).
//		WithCredentialStore(credentials).
//		WithTwoFactorStore(twoFactor).
//		WithLedger(ledger).
//		WithSessionStore(sessions).
//		WithNotifier(notifier).
//		Build()
//
// All mutating operations write their audit entry before reporting
// success; a failed ledger append aborts the operation with
// ErrStorageFailure.
package accesscore
