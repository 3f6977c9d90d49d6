package accesscore

import (
	"errors"
	"time"

	"github.com/caretrail/accesscore/password"
)

// Config is the engine configuration. Construct with DefaultConfig and
// override fields; Build validates the result. A Config is treated as
// immutable once the engine is built.
type Config struct {
	Resolver      ResolverConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	TwoFactor     TwoFactorConfig
	Audit         AuditConfig
	Retention     RetentionConfig
	Sweep         SweepConfig
}

// ResolverConfig controls system-scope detection. An identity whose
// email is listed in SystemAdminEmails, or whose domain is listed in
// SystemAdminDomains, resolves to system scope with no tenant.
type ResolverConfig struct {
	SystemAdminEmails  []string
	SystemAdminDomains []string
}

// PasswordConfig carries the Argon2id parameters and the static policy.
type PasswordConfig struct {
	Argon2 password.Params
	Policy password.Policy
	// HistoryDepth is how many prior hashes are retained and checked for
	// reuse.
	HistoryDepth int
}

// PasswordResetConfig tunes the reset token and its rate limits.
type PasswordResetConfig struct {
	// TokenTTL is the validity window of an issued reset token.
	TokenTTL time.Duration
	// Window and MaxAttempts define the sliding-window limit applied per
	// caller origin before any token state is disclosed.
	Window      time.Duration
	MaxAttempts int
	// RequestWindow and MaxRequests throttle token issuance per
	// identifier to bound outbound notifications.
	RequestWindow time.Duration
	MaxRequests   int
}

// TwoFactorConfig tunes TOTP verification and enrollment hygiene.
type TwoFactorConfig struct {
	Issuer string
	Digits int
	Period int
	// Skew is the number of adjacent time steps accepted on either side
	// of the current one.
	Skew            int
	BackupCodeCount int
	// PendingTTL bounds how long an unconfirmed enrollment secret may
	// linger before the sweeper discards it.
	PendingTTL time.Duration
}

// AuditConfig controls denial auditing and the mirror dispatcher.
type AuditConfig struct {
	// RecordDenied writes a warn-severity entry for every policy denial.
	RecordDenied bool
	// Mirror configures the non-authoritative async sink.
	MirrorEnabled    bool
	MirrorBufferSize int
	MirrorDropIfFull bool
}

// RetentionConfig records data-lifecycle windows. AuditRetention is
// informational for the core: entries are never deleted here.
type RetentionConfig struct {
	AuditRetention   time.Duration
	HistoryRetention time.Duration
}

// SweepConfig controls the background expiry sweep.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// DefaultConfig returns the production baseline: 1h reset tokens,
// 5 attempts per 15-minute sliding window, 5-deep password history,
// RFC 6238 TOTP with one step of drift, and 7-year audit retention.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Argon2:       password.DefaultParams(),
			Policy:       password.DefaultPolicy(),
			HistoryDepth: 5,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:      time.Hour,
			Window:        15 * time.Minute,
			MaxAttempts:   5,
			RequestWindow: 15 * time.Minute,
			MaxRequests:   5,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          "accesscore",
			Digits:          6,
			Period:          30,
			Skew:            1,
			BackupCodeCount: 10,
			PendingTTL:      24 * time.Hour,
		},
		Audit: AuditConfig{
			RecordDenied:     true,
			MirrorEnabled:    false,
			MirrorBufferSize: 256,
			MirrorDropIfFull: true,
		},
		Retention: RetentionConfig{
			AuditRetention:   7 * 365 * 24 * time.Hour,
			HistoryRetention: 2 * 365 * 24 * time.Hour,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

// Validate rejects configurations that would weaken the documented
// invariants rather than patching them up silently.
func (c Config) Validate() error {
	if c.Password.HistoryDepth < 1 {
		return errors.New("config: password history depth must be at least 1")
	}
	if c.Password.Policy.MinLength < 12 {
		return errors.New("config: password minimum length below 12")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("config: reset token TTL must be positive")
	}
	if c.PasswordReset.Window <= 0 || c.PasswordReset.MaxAttempts <= 0 {
		return errors.New("config: reset rate-limit window and attempts must be positive")
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 10 {
		return errors.New("config: totp digits out of range")
	}
	if c.TwoFactor.Period <= 0 {
		return errors.New("config: totp period must be positive")
	}
	if c.TwoFactor.Skew < 0 || c.TwoFactor.Skew > 2 {
		return errors.New("config: totp skew out of range")
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return errors.New("config: sweep interval must be positive")
	}
	return nil
}
