package accesscore

import (
	"context"
	"io"
	"time"

	"github.com/caretrail/accesscore/authz"
	internalaudit "github.com/caretrail/accesscore/internal/audit"
	"github.com/caretrail/accesscore/internal/ledger"
)

// SessionContext is the resolved request identity consumed by the
// policy engine. It lives for the duration of a request and is never
// persisted.
type SessionContext = authz.Context

// UserRecord is the identity record supplied by the Directory. It
// deliberately carries no credential material; credentials are owned by
// the CredentialStore.
type UserRecord struct {
	UserID    string
	Email     string
	Active    bool
	CreatedAt time.Time
}

// Membership links a user to a tenant with a role. A user may hold
// memberships in several tenants; the resolver scopes a session to the
// earliest-joined active one.
type Membership struct {
	UserID   string
	TenantID string
	Role     authz.Role
	Active   bool
	JoinedAt time.Time
}

// Directory is the read-only identity source the engine resolves
// against. Implementations must not cache across requests: the resolver
// re-reads memberships on every call so concurrent membership changes
// take effect immediately.
type Directory interface {
	UserByID(ctx context.Context, userID string) (UserRecord, error)
	UserByEmail(ctx context.Context, email string) (UserRecord, error)
	Memberships(ctx context.Context, userID string) ([]Membership, error)
}

// CredentialStore owns password hashes and password history.
type CredentialStore interface {
	// CurrentHash returns the user's active password hash.
	CurrentHash(ctx context.Context, userID string) (string, error)
	// RecentHashes returns up to n history hashes, newest first. The
	// active hash is not included.
	RecentHashes(ctx context.Context, userID string, n int) ([]string, error)
	// ApplyPasswordReset atomically replaces the credential, appends the
	// prior hash to history pruning entries beyond keep, and appends the
	// audit entry. If any part fails the whole operation must roll back.
	ApplyPasswordReset(ctx context.Context, userID, newHash string, keep int, entry AuditEntry) error
	// PruneHistoryBefore removes history entries older than cutoff,
	// independent of the per-user keep count.
	PruneHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TwoFactorRecord is the persisted TOTP credential. A record with
// Enabled=false is a pending enrollment: the secret has been issued but
// possession has not been proven.
type TwoFactorRecord struct {
	UserID    string
	Secret    []byte
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BackupCode stores the SHA-256 hash of a single-use recovery code.
// The plaintext is shown once at enrollment and never persisted.
type BackupCode struct {
	Hash [32]byte
}

// TwoFactorStore persists two-factor credentials and backup codes.
// Every state transition takes its audit entry and must commit the two
// together: if the entry cannot be recorded the transition rolls back,
// the same contract ApplyPasswordReset honors.
type TwoFactorStore interface {
	// Get returns the record, or ErrTwoFactorNotEnrolled when absent.
	Get(ctx context.Context, userID string) (TwoFactorRecord, error)
	// SavePending stores a fresh secret and backup codes with
	// Enabled=false, replacing any previous pending enrollment. The
	// audit entry commits with the change.
	SavePending(ctx context.Context, userID string, secret []byte, codes []BackupCode, entry AuditEntry) error
	// Enable flips the pending record to enabled, committing the audit
	// entry in the same transaction.
	Enable(ctx context.Context, userID string, entry AuditEntry) error
	// Disable removes the secret and backup codes entirely, committing
	// the audit entry in the same transaction.
	Disable(ctx context.Context, userID string, entry AuditEntry) error
	// ConsumeBackupCode atomically burns a matching unused code. The
	// audit entry commits only when a code was burned; a miss records
	// nothing.
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte, entry AuditEntry) (bool, error)
	// DeleteStalePending removes pending enrollments issued before cutoff.
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// Ledger is the append-only audit store. Append must be durable before
// the triggering operation reports success; implementations must reject
// updates and deletes at the storage layer.
type Ledger interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows a ledger query. Zero fields match everything.
type AuditFilter = ledger.Filter

// AuditEntry is the canonical audit record.
type AuditEntry = internalaudit.Event

// Audit severities and categories, re-exported for callers and sinks.
const (
	SeverityInfo = internalaudit.SeverityInfo
	SeverityWarn = internalaudit.SeverityWarn

	CategoryAuthentication = internalaudit.CategoryAuthentication
	CategoryAuthorization  = internalaudit.CategoryAuthorization
	CategoryAccount        = internalaudit.CategoryAccount
	CategorySecurity       = internalaudit.CategorySecurity
)

// AuditSink receives mirrored audit events; the ledger append remains
// the authoritative record.
type AuditSink = internalaudit.Sink

// NoOpSink discards mirrored events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers mirrored events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes mirrored events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// TwoFactorProvision is returned by BeginTwoFactorEnrollment. Secret and
// BackupCodes are shown to the caller once; only hashes are persisted.
type TwoFactorProvision struct {
	SecretBase32 string
	URI          string
	BackupCodes  []string
}

// SessionRecord is the session store's view of one session.
type SessionRecord struct {
	SessionID string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionStore is the boundary to the session collaborator: it supplies
// raw identity for a credential and supports bulk revocation after a
// credential change. Tenant and role never come from here.
type SessionStore interface {
	Lookup(ctx context.Context, credential string) (SessionRecord, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Notifier delivers a reset token out of band. The engine only produces
// the token; delivery success is the collaborator's concern.
type Notifier interface {
	DeliverResetToken(ctx context.Context, email, token string, expiresAt time.Time) error
}
