package authz

// Permission keys. Operations may require any subset; all required keys
// must be present in the acting role's set.
const (
	PermMembersRead      = "members.read"
	PermMembersWrite     = "members.write"
	PermInvitesManage    = "invites.manage"
	PermRecordsRead      = "records.read"
	PermRecordsWrite     = "records.write"
	PermBillingRead      = "billing.read"
	PermBillingWrite     = "billing.write"
	PermCredentialsReset = "credentials.reset"
	PermAuditRead        = "audit.read"
)

// rolePermissions is the closed role -> permission mapping. RoleSystemAdmin
// is absent on purpose: system scope short-circuits in Authorize before
// permission evaluation.
var rolePermissions = map[Role][]string{
	RoleOrgAdmin: {
		PermMembersRead, PermMembersWrite, PermInvitesManage,
		PermRecordsRead, PermRecordsWrite,
		PermBillingRead, PermBillingWrite,
		PermCredentialsReset, PermAuditRead,
	},
	RoleClinician: {
		PermMembersRead,
		PermRecordsRead, PermRecordsWrite,
	},
	RoleStaff: {
		PermMembersRead,
		PermRecordsRead,
	},
	RoleBilling: {
		PermMembersRead,
		PermBillingRead, PermBillingWrite,
	},
}

var permissionSets = buildPermissionSets()

func buildPermissionSets() map[Role]map[string]struct{} {
	sets := make(map[Role]map[string]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}

// HasPermission reports whether the role's permission set contains key.
func HasPermission(role Role, key string) bool {
	set, ok := permissionSets[role]
	if !ok {
		return false
	}
	_, ok = set[key]
	return ok
}

// PermissionsFor returns a copy of the role's permission list, sorted as
// declared. Useful for introspection endpoints; never used in decisions.
func PermissionsFor(role Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
