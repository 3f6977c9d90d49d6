package accesscore

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"strings"
	"time"

	"github.com/caretrail/accesscore/internal"
	internalaudit "github.com/caretrail/accesscore/internal/audit"
	"github.com/caretrail/accesscore/internal/limiters"
	"github.com/caretrail/accesscore/internal/stores"
	"github.com/caretrail/accesscore/password"
)

const (
	actionResetRequested = "credential.reset.requested"
	actionResetCompleted = "credential.reset.completed"
	actionResetRejected  = "credential.reset.rejected"
)

// RequestPasswordReset issues a single-use reset token for the account
// behind email and hands it to the notifier. The response is identical
// whether or not the account exists: unknown identifiers, inactive
// accounts, and delivery failures all return nil after a jittered
// delay, so the endpoint cannot be used to enumerate accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() || e.notifier == nil {
		return ErrEngineNotReady
	}

	identifier := strings.ToLower(strings.TrimSpace(email))
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrValidationFailed)
	}

	retryAfter, err := e.resetLimiter.AllowRequest(ctx, identifier)
	if err != nil {
		if errors.Is(err, limiters.ErrLimited) {
			e.metrics.RateLimitHit("reset_request")
			e.metrics.ResetRequest("rate_limited")
			return &RateLimitedError{RetryAfter: retryAfter}
		}
		return fmt.Errorf("%w: reset request limiter: %v", ErrStorageFailure, err)
	}

	user, err := e.directory.UserByEmail(ctx, identifier)
	if err != nil || !user.Active {
		e.metrics.ResetRequest("unknown_identifier")
		e.jitter()
		return nil
	}

	resetID, err := internal.NewResetID()
	if err != nil {
		return fmt.Errorf("%w: reset id generation: %v", ErrStorageFailure, err)
	}
	secret, err := internal.NewResetSecret()
	if err != nil {
		return fmt.Errorf("%w: reset secret generation: %v", ErrStorageFailure, err)
	}

	ttl := e.config.PasswordReset.TokenTTL
	expiresAt := e.now().Add(ttl)
	record := stores.ResetRecord{
		UserID:     user.UserID,
		SecretHash: internal.HashResetSecret(secret),
		ExpiresAt:  expiresAt.Unix(),
	}
	if err := e.resetTokens.Issue(ctx, resetID.String(), record, ttl); err != nil {
		return fmt.Errorf("%w: reset token issue: %v", ErrStorageFailure, err)
	}

	entry := e.newEntry(ctx, actionResetRequested, "credential", internalaudit.CategoryAuthentication, SeverityInfo)
	entry.UserID = user.UserID
	entry.Details["reset_id"] = resetID.String()
	if err := e.appendAudit(ctx, entry); err != nil {
		return err
	}

	token := internal.EncodeResetToken(resetID, secret)
	if err := e.notifier.DeliverResetToken(ctx, user.Email, token, expiresAt); err != nil {
		// Delivery failure must not be observable to the caller; the
		// token simply expires unused.
		e.metrics.ResetRequest("delivery_failed")
		e.logger.Error().Err(err).Str("user_id", user.UserID).Msg("reset token delivery failed")
		e.jitter()
		return nil
	}

	e.metrics.ResetRequest("issued")
	e.jitter()
	return nil
}

// ConfirmPasswordReset validates token and replaces the account
// password. The checks run in a fixed order: the per-origin rate limit
// before any token state is disclosed, then token validity, then
// password policy and reuse. The token is consumed only after every
// check passes, so a policy rejection leaves it usable for a corrected
// retry, and consumption is atomic so concurrent confirmations of the
// same token admit exactly one winner. On success all sessions of the
// user are revoked.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	origin := clientIPFromContext(ctx)
	if origin == "" {
		origin = "unknown"
	}
	retryAfter, err := e.resetLimiter.AllowConfirm(ctx, origin)
	if err != nil {
		if errors.Is(err, limiters.ErrLimited) {
			e.metrics.RateLimitHit("reset_confirm")
			e.metrics.ResetConfirm("rate_limited")
			e.auditResetRejected(ctx, "", "rate_limited")
			return &RateLimitedError{RetryAfter: retryAfter}
		}
		return fmt.Errorf("%w: reset confirm limiter: %v", ErrStorageFailure, err)
	}

	resetID, secret, err := internal.DecodeResetToken(token)
	if err != nil {
		e.metrics.ResetConfirm("invalid_token")
		return ErrNotFoundOrExpired
	}
	secretHash := internal.HashResetSecret(secret)

	record, err := e.resetTokens.Verify(ctx, resetID.String(), secretHash)
	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			e.metrics.ResetConfirm("invalid_token")
			return ErrNotFoundOrExpired
		}
		return fmt.Errorf("%w: reset token verify: %v", ErrStorageFailure, err)
	}

	if err := e.config.Password.Policy.Validate(newPassword); err != nil {
		e.metrics.ResetConfirm("policy_rejected")
		e.auditResetRejected(ctx, record.UserID, "policy")
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	if err := e.rejectRecentReuse(ctx, record.UserID, newPassword); err != nil {
		if errors.Is(err, ErrPasswordReuse) {
			e.metrics.ResetConfirm("reuse_rejected")
			e.auditResetRejected(ctx, record.UserID, "reuse")
		}
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: password hash: %v", ErrStorageFailure, err)
	}

	// Consume last: a token burned here is gone even if the credential
	// write below fails, which errs on the side of the attacker having
	// to restart the flow.
	if _, err := e.resetTokens.Consume(ctx, resetID.String(), secretHash); err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			e.metrics.ResetConfirm("invalid_token")
			return ErrNotFoundOrExpired
		}
		return fmt.Errorf("%w: reset token consume: %v", ErrStorageFailure, err)
	}

	entry := e.newEntry(ctx, actionResetCompleted, "credential", internalaudit.CategoryAccount, SeverityInfo)
	entry.UserID = record.UserID
	entry.Details["reset_id"] = resetID.String()
	if err := e.credentials.ApplyPasswordReset(ctx, record.UserID, newHash, e.config.Password.HistoryDepth, entry); err != nil {
		return fmt.Errorf("%w: apply password reset: %v", ErrStorageFailure, err)
	}
	e.mirrorOnly(ctx, entry)

	if err := e.sessions.RevokeAllForUser(ctx, record.UserID); err != nil {
		e.logger.Error().Err(err).Str("user_id", record.UserID).Msg("session revocation failed after reset")
		return fmt.Errorf("%w: session revocation: %v", ErrStorageFailure, err)
	}

	e.metrics.ResetConfirm("completed")
	return nil
}

// rejectRecentReuse compares the candidate against the active hash and
// the retained history.
func (e *Engine) rejectRecentReuse(ctx context.Context, userID, candidate string) error {
	current, err := e.credentials.CurrentHash(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrNotFoundOrExpired
		}
		return fmt.Errorf("%w: current hash lookup: %v", ErrStorageFailure, err)
	}

	hashes := make([]string, 0, e.config.Password.HistoryDepth+1)
	if current != "" {
		hashes = append(hashes, current)
	}
	history, err := e.credentials.RecentHashes(ctx, userID, e.config.Password.HistoryDepth)
	if err != nil {
		return fmt.Errorf("%w: history lookup: %v", ErrStorageFailure, err)
	}
	hashes = append(hashes, history...)

	for _, h := range hashes {
		match, err := e.hasher.Verify(candidate, h)
		if err != nil {
			// Unparseable legacy hash: skip rather than lock the user
			// out of resetting at all.
			if errors.Is(err, password.ErrInvalidHash) {
				continue
			}
			return fmt.Errorf("%w: reuse check: %v", ErrStorageFailure, err)
		}
		if match {
			return ErrPasswordReuse
		}
	}
	return nil
}

func (e *Engine) auditResetRejected(ctx context.Context, userID, reason string) {
	entry := e.newEntry(ctx, actionResetRejected, "credential", internalaudit.CategorySecurity, SeverityWarn)
	entry.UserID = userID
	entry.Details["reason"] = reason
	if err := e.ledger.Append(ctx, entry); err != nil {
		e.metrics.AuditAppendFailure()
		e.logger.Error().Err(err).Msg("reset rejection audit append failed")
		return
	}
	e.mirror.Emit(ctx, entry)
}

// jitter equalizes the response time of the request path so a caller
// cannot distinguish a known identifier from an unknown one.
func (e *Engine) jitter() {
	e.sleep(50*time.Millisecond + time.Duration(mathrand.Int63n(int64(100*time.Millisecond))))
}
