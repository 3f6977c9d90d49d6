package authz

// Context is a resolved request identity. TenantID is empty for
// system-scope identities and for authenticated identities with no
// active membership; the Role distinguishes the two cases.
type Context struct {
	UserID    string
	TenantID  string
	Role      Role
	SessionID string
}

// SystemScope reports whether the identity bypasses tenant isolation.
func (c Context) SystemScope() bool {
	return c.Role == RoleSystemAdmin
}

// Scoped reports whether the identity may attempt tenant-scoped
// operations at all.
func (c Context) Scoped() bool {
	return c.TenantID != "" && c.Role != RoleNone
}

// Operation declares the policy of a single data operation. Roles and
// Permissions are conjunctive gates evaluated after tenant match;
// AllowSelf marks operations where ownership bypasses both.
type Operation struct {
	Name        string
	Roles       []Role
	Permissions []string
	AllowSelf   bool
}

// Target identifies the resource an operation acts on. OwnerUserID is
// empty for resources not owned by a single user.
type Target struct {
	TenantID    string
	OwnerUserID string
}

// Deny reasons. These are recorded in the audit ledger; callers must
// never surface them to end users.
const (
	ReasonUnscoped               = "no active tenant membership"
	ReasonTenantIsolation        = "tenant isolation"
	ReasonInsufficientRole       = "insufficient role"
	ReasonInsufficientPermission = "insufficient permission"
)

// Decision is the outcome of Authorize. Reason is set only on deny.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the permissive decision.
var Allow = Decision{Allowed: true}

// Deny constructs a denial carrying an internal reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Authorize evaluates the ordered predicate chain; the first matching
// predicate wins:
//
//  1. system scope allows unconditionally
//  2. self-access, when the operation permits it and the target is
//     owned by the acting identity
//  3. tenant match between identity and target
//  4. role membership in the operation's required set
//  5. presence of every required permission in the role's set
//
// Self-access is evaluated before tenant and role checks so a user keeps
// access to their own record even after their membership lapses, without
// widening what tenant administrators can reach.
func Authorize(c Context, op Operation, target Target) Decision {
	if c.SystemScope() {
		return Allow
	}

	if op.AllowSelf && target.OwnerUserID != "" && target.OwnerUserID == c.UserID {
		return Allow
	}

	if !c.Scoped() {
		return Deny(ReasonUnscoped)
	}
	if target.TenantID != c.TenantID {
		return Deny(ReasonTenantIsolation)
	}

	if len(op.Roles) > 0 && !roleIn(c.Role, op.Roles) {
		return Deny(ReasonInsufficientRole)
	}

	for _, perm := range op.Permissions {
		if !HasPermission(c.Role, perm) {
			return Deny(ReasonInsufficientPermission)
		}
	}

	return Allow
}

func roleIn(role Role, set []Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}
