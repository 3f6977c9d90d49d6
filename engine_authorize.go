package accesscore

import (
	"context"

	"github.com/caretrail/accesscore/authz"
	internalaudit "github.com/caretrail/accesscore/internal/audit"
)

// Authorize evaluates op against target for the given identity. Every
// denial maps to the single ErrUnauthorized; the failing predicate is
// recorded in the audit ledger, never surfaced to the caller.
func (e *Engine) Authorize(ctx context.Context, sc SessionContext, op authz.Operation, target authz.Target) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	decision := authz.Authorize(sc, op, target)
	if decision.Allowed {
		e.metrics.AuthzDecision("allow", "")
		return nil
	}

	e.metrics.AuthzDecision("deny", decision.Reason)

	if e.config.Audit.RecordDenied {
		entry := e.newEntry(ctx, "authz.denied", op.Name, internalaudit.CategoryAuthorization, SeverityWarn)
		entry.UserID = sc.UserID
		entry.TenantID = sc.TenantID
		entry.ResourceID = target.OwnerUserID
		entry.Details["reason"] = decision.Reason
		entry.Details["target_tenant"] = target.TenantID
		if err := e.ledger.Append(ctx, entry); err != nil {
			// The denial stands either way; losing the record is an
			// operational fault, not an authorization outcome.
			e.metrics.AuditAppendFailure()
			e.logger.Error().Err(err).Str("operation", op.Name).Msg("denial audit append failed")
		} else {
			e.mirror.Emit(ctx, entry)
		}
	}

	return ErrUnauthorized
}
