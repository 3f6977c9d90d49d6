package accesscore

import (
	"context"
	"strings"

	"github.com/caretrail/accesscore/authz"
)

// ResolveSession turns a raw session credential into a scoped identity.
//
// The session collaborator supplies only the user id; tenant and role
// are re-read from the directory on every call, so a revoked membership
// takes effect on the next request without touching the session. An
// identity on the system allowlist resolves to system scope with no
// tenant. An identity with no active membership resolves to RoleNone
// and is denied every tenant-scoped operation downstream.
func (e *Engine) ResolveSession(ctx context.Context, credential string) (SessionContext, error) {
	if !e.ready() {
		return SessionContext{}, ErrEngineNotReady
	}

	session, err := e.sessions.Lookup(ctx, credential)
	if err != nil {
		return SessionContext{}, ErrUnauthenticated
	}
	if !session.ExpiresAt.IsZero() && !e.now().Before(session.ExpiresAt) {
		return SessionContext{}, ErrUnauthenticated
	}

	return e.resolveUser(ctx, session.UserID, session.SessionID)
}

func (e *Engine) resolveUser(ctx context.Context, userID, sessionID string) (SessionContext, error) {
	user, err := e.directory.UserByID(ctx, userID)
	if err != nil {
		return SessionContext{}, ErrUnauthenticated
	}
	if !user.Active {
		return SessionContext{}, ErrUnauthenticated
	}

	sc := SessionContext{
		UserID:    user.UserID,
		SessionID: sessionID,
	}

	if e.systemScoped(user.Email) {
		sc.Role = authz.RoleSystemAdmin
		return sc, nil
	}

	memberships, err := e.directory.Memberships(ctx, user.UserID)
	if err != nil {
		return SessionContext{}, ErrUnauthenticated
	}

	// Earliest-joined active membership wins; a user in several tenants
	// gets a deterministic scope, never a union of them.
	var chosen *Membership
	for i := range memberships {
		m := &memberships[i]
		if !m.Active || !m.Role.Valid() || m.Role == authz.RoleNone {
			continue
		}
		if m.Role == authz.RoleSystemAdmin {
			// System scope comes only from the allowlist; a stored
			// membership cannot grant it.
			continue
		}
		if chosen == nil || m.JoinedAt.Before(chosen.JoinedAt) {
			chosen = m
		}
	}
	if chosen != nil {
		sc.TenantID = chosen.TenantID
		sc.Role = chosen.Role
	}

	return sc, nil
}

func (e *Engine) systemScoped(email string) bool {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return false
	}
	for _, allowed := range e.config.Resolver.SystemAdminEmails {
		if normalized == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	at := strings.LastIndexByte(normalized, '@')
	if at < 0 {
		return false
	}
	domain := normalized[at+1:]
	for _, allowed := range e.config.Resolver.SystemAdminDomains {
		if domain == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}
