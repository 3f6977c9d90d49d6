package accesscore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/caretrail/accesscore/internal/audit"
	"github.com/caretrail/accesscore/internal/limiters"
	"github.com/caretrail/accesscore/internal/metrics"
	"github.com/caretrail/accesscore/internal/stores"
	"github.com/caretrail/accesscore/password"
)

// Engine is the access-control and credential-lifecycle core. Build one
// with the Builder; it is immutable and safe for concurrent use once
// built.
type Engine struct {
	config Config

	directory   Directory
	credentials CredentialStore
	twoFactor   TwoFactorStore
	ledger      Ledger
	sessions    SessionStore
	notifier    Notifier

	resetTokens  *stores.ResetTokenStore
	resetLimiter *limiters.ResetLimiter

	hasher  *password.Hasher
	totp    *totpManager
	mirror  *internalaudit.Dispatcher
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(time.Duration)

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// Close stops the background sweeper and drains the mirror dispatcher.
// The authoritative ledger needs no shutdown: every append is
// synchronous.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.sweepCancel != nil {
		e.sweepCancel()
		<-e.sweepDone
	}
	e.mirror.Close()
}

// MirrorDropped reports how many mirrored audit events were discarded
// under backpressure. The ledger itself never drops.
func (e *Engine) MirrorDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.mirror.Dropped()
}

func (e *Engine) ready() bool {
	return e != nil && e.directory != nil && e.credentials != nil &&
		e.twoFactor != nil && e.ledger != nil && e.hasher != nil
}

// newEntry builds an audit entry stamped with the engine clock and any
// request correlation carried on ctx.
func (e *Engine) newEntry(ctx context.Context, action, resource, category, severity string) AuditEntry {
	entry := AuditEntry{
		Action:    action,
		Resource:  resource,
		Category:  category,
		Severity:  severity,
		Timestamp: e.now().UTC(),
		Details:   map[string]string{},
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		entry.Details["client_ip"] = ip
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry.Details["request_id"] = rid
	}
	return entry
}

// appendAudit writes entry to the ledger before the caller reports
// success, then forwards it to the mirror. A failed append is a storage
// failure: the triggering operation must not succeed unrecorded.
func (e *Engine) appendAudit(ctx context.Context, entry AuditEntry) error {
	if err := e.ledger.Append(ctx, entry); err != nil {
		e.metrics.AuditAppendFailure()
		e.logger.Error().Err(err).Str("action", entry.Action).Msg("audit append failed")
		return fmt.Errorf("%w: audit append: %v", ErrStorageFailure, err)
	}
	e.mirror.Emit(ctx, entry)
	return nil
}

// mirrorOnly forwards an entry that was already persisted as part of a
// store-side transaction.
func (e *Engine) mirrorOnly(ctx context.Context, entry AuditEntry) {
	e.mirror.Emit(ctx, entry)
}
