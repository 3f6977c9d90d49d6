package authz

import "testing"

func scoped(user, tenant string, role Role) Context {
	return Context{UserID: user, TenantID: tenant, Role: role, SessionID: "s1"}
}

func TestAuthorizePredicateOrder(t *testing.T) {
	tests := []struct {
		name   string
		ctx    Context
		op     Operation
		target Target
		allow  bool
		reason string
	}{
		{
			name:   "system scope bypasses everything",
			ctx:    Context{UserID: "root", Role: RoleSystemAdmin},
			op:     OpMemberWrite,
			target: Target{TenantID: "t2"},
			allow:  true,
		},
		{
			name:   "self access wins over lapsed membership",
			ctx:    Context{UserID: "u1", Role: RoleNone},
			op:     OpMemberRead,
			target: Target{TenantID: "t1", OwnerUserID: "u1"},
			allow:  true,
		},
		{
			name:   "self access does not apply to foreign resources",
			ctx:    scoped("u1", "t1", RoleStaff),
			op:     OpMemberRead,
			target: Target{TenantID: "t2", OwnerUserID: "u2"},
			allow:  false,
			reason: ReasonTenantIsolation,
		},
		{
			name:   "self access ignored when operation forbids it",
			ctx:    scoped("u1", "t1", RoleStaff),
			op:     OpRecordWrite,
			target: Target{TenantID: "t2", OwnerUserID: "u1"},
			allow:  false,
			reason: ReasonTenantIsolation,
		},
		{
			name:   "unscoped identity denied",
			ctx:    Context{UserID: "u1", Role: RoleNone},
			op:     OpRecordRead,
			target: Target{TenantID: "t1"},
			allow:  false,
			reason: ReasonUnscoped,
		},
		{
			name:   "tenant mismatch denied",
			ctx:    scoped("u1", "t1", RoleOrgAdmin),
			op:     OpMemberRead,
			target: Target{TenantID: "t2"},
			allow:  false,
			reason: ReasonTenantIsolation,
		},
		{
			name:   "role set enforced after tenant match",
			ctx:    scoped("u1", "t1", RoleStaff),
			op:     OpMemberWrite,
			target: Target{TenantID: "t1"},
			allow:  false,
			reason: ReasonInsufficientRole,
		},
		{
			name:   "permission set enforced",
			ctx:    scoped("u1", "t1", RoleStaff),
			op:     OpRecordWrite,
			target: Target{TenantID: "t1"},
			allow:  false,
			reason: ReasonInsufficientPermission,
		},
		{
			name:   "scoped matching identity allowed",
			ctx:    scoped("u1", "t1", RoleClinician),
			op:     OpRecordWrite,
			target: Target{TenantID: "t1"},
			allow:  true,
		},
		{
			name:   "billing role cannot write records",
			ctx:    scoped("u1", "t1", RoleBilling),
			op:     OpRecordWrite,
			target: Target{TenantID: "t1"},
			allow:  false,
			reason: ReasonInsufficientPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.ctx, tt.op, tt.target)
			if d.Allowed != tt.allow {
				t.Fatalf("Authorize allowed=%v, want %v (reason=%q)", d.Allowed, tt.allow, d.Reason)
			}
			if !tt.allow && d.Reason != tt.reason {
				t.Fatalf("deny reason = %q, want %q", d.Reason, tt.reason)
			}
			if tt.allow && d.Reason != "" {
				t.Fatalf("allow decision carries reason %q", d.Reason)
			}
		})
	}
}

func TestTenantIsolationProperty(t *testing.T) {
	// Every non-system, non-self combination of scoped role and foreign
	// tenant must deny, for every declared operation.
	ops := []Operation{
		OpMemberRead, OpMemberWrite, OpRecordRead, OpRecordWrite,
		OpBillingRead, OpCredentialManage, OpTwoFactorManage, OpAuditRead,
	}
	roles := []Role{RoleOrgAdmin, RoleClinician, RoleStaff, RoleBilling}

	for _, op := range ops {
		for _, role := range roles {
			ctx := scoped("u1", "t1", role)
			d := Authorize(ctx, op, Target{TenantID: "t2", OwnerUserID: "u2"})
			if d.Allowed {
				t.Fatalf("op %s allowed cross-tenant access for role %s", op.Name, role)
			}
			if d.Reason != ReasonTenantIsolation {
				t.Fatalf("op %s role %s: reason = %q, want tenant isolation", op.Name, role, d.Reason)
			}
		}
	}
}

func TestParseRoleFailsClosed(t *testing.T) {
	if got := ParseRole("superuser"); got != RoleNone {
		t.Fatalf("ParseRole(superuser) = %v, want RoleNone", got)
	}
	for role, name := range roleNames {
		if ParseRole(name) != role {
			t.Fatalf("ParseRole(%q) did not round-trip", name)
		}
	}
}

func TestAdministrativeRoles(t *testing.T) {
	if !RoleSystemAdmin.Administrative() || !RoleOrgAdmin.Administrative() {
		t.Fatal("admin roles must be administrative")
	}
	for _, r := range []Role{RoleNone, RoleClinician, RoleStaff, RoleBilling} {
		if r.Administrative() {
			t.Fatalf("role %s must not be administrative", r)
		}
	}
}
