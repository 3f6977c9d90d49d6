package accesscore

import (
	"context"
	"fmt"
)

// QueryAudit reads the ledger on behalf of sc. Only administrative
// roles may query at all; a tenant administrator is forced onto their
// own tenant regardless of the requested filter, while system scope may
// query across tenants.
func (e *Engine) QueryAudit(ctx context.Context, sc SessionContext, filter AuditFilter) ([]AuditEntry, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if !sc.Role.Administrative() {
		e.metrics.AuthzDecision("deny", "audit query")
		return nil, ErrUnauthorized
	}
	if !sc.SystemScope() {
		if sc.TenantID == "" {
			return nil, ErrUnauthorized
		}
		filter.TenantID = sc.TenantID
	}

	entries, err := e.ledger.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: audit query: %v", ErrStorageFailure, err)
	}
	return entries, nil
}
