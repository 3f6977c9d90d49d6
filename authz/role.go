package authz

import "fmt"

// Role is the closed set of roles recognized by the policy engine.
// RoleNone marks an authenticated identity with no active tenant
// membership; such identities are denied every tenant-scoped operation.
type Role uint8

const (
	RoleNone Role = iota
	RoleSystemAdmin
	RoleOrgAdmin
	RoleClinician
	RoleStaff
	RoleBilling
)

var roleNames = map[Role]string{
	RoleNone:        "none",
	RoleSystemAdmin: "system_admin",
	RoleOrgAdmin:    "org_admin",
	RoleClinician:   "clinician",
	RoleStaff:       "staff",
	RoleBilling:     "billing",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole maps a stored role name back to its enumeration value.
// Unknown names resolve to RoleNone so that a corrupted or legacy row
// fails closed instead of granting access.
func ParseRole(name string) Role {
	for role, n := range roleNames {
		if n == name {
			return role
		}
	}
	return RoleNone
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Administrative reports whether r may read the audit ledger.
func (r Role) Administrative() bool {
	return r == RoleSystemAdmin || r == RoleOrgAdmin
}
