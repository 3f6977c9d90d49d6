package audit

import "time"

// Severity of an audit event.
const (
	SeverityInfo = "info"
	SeverityWarn = "warn"
)

// Event categories. Every security-relevant action falls into exactly
// one.
const (
	CategoryAuthentication = "authentication"
	CategoryAuthorization  = "authorization"
	CategoryAccount        = "account"
	CategorySecurity       = "security"
)

// Event is the canonical audit record. Once appended to the ledger an
// event is immutable; UserID and TenantID are retained as historical
// values even after the referenced user or tenant is deleted.
type Event struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id,omitempty"`
	TenantID   string            `json:"tenant_id,omitempty"`
	Action     string            `json:"action"`
	Resource   string            `json:"resource"`
	ResourceID string            `json:"resource_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Severity   string            `json:"severity"`
	Category   string            `json:"category"`
	Timestamp  time.Time         `json:"timestamp"`
}
