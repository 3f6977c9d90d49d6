package authz

// Standard operations evaluated by the engine and the HTTP surface.
// Declaring them here keeps every policy in one reviewable place.
var (
	OpMemberRead = Operation{
		Name:        "member.read",
		Permissions: []string{PermMembersRead},
		AllowSelf:   true,
	}
	OpMemberWrite = Operation{
		Name:        "member.write",
		Roles:       []Role{RoleOrgAdmin},
		Permissions: []string{PermMembersWrite},
	}
	OpRecordRead = Operation{
		Name:        "record.read",
		Permissions: []string{PermRecordsRead},
		AllowSelf:   true,
	}
	OpRecordWrite = Operation{
		Name:        "record.write",
		Permissions: []string{PermRecordsWrite},
	}
	OpBillingRead = Operation{
		Name:        "billing.read",
		Permissions: []string{PermBillingRead},
	}
	OpCredentialManage = Operation{
		Name:        "credential.manage",
		Roles:       []Role{RoleOrgAdmin},
		Permissions: []string{PermCredentialsReset},
		AllowSelf:   true,
	}
	OpTwoFactorManage = Operation{
		Name:      "twofactor.manage",
		AllowSelf: true,
		Roles:     []Role{RoleOrgAdmin},
	}
	OpAuditRead = Operation{
		Name:        "audit.read",
		Roles:       []Role{RoleOrgAdmin},
		Permissions: []string{PermAuditRead},
	}
)
