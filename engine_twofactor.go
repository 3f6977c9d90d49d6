package accesscore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	internalaudit "github.com/caretrail/accesscore/internal/audit"
)

const (
	actionTwoFactorEnrollBegan = "twofactor.enroll.began"
	actionTwoFactorEnabled     = "twofactor.enabled"
	actionTwoFactorDisabled    = "twofactor.disabled"
	actionTwoFactorBackupUsed  = "twofactor.backup_code.used"
)

// BeginTwoFactorEnrollment provisions a fresh TOTP secret and backup
// codes for the user. The record stays pending until the user proves
// possession via ConfirmTwoFactorEnrollment; beginning again replaces
// any earlier pending secret. The plaintext secret and codes appear
// only in the returned provision and are never persisted.
func (e *Engine) BeginTwoFactorEnrollment(ctx context.Context, userID string) (TwoFactorProvision, error) {
	if !e.ready() {
		return TwoFactorProvision{}, ErrEngineNotReady
	}

	existing, err := e.twoFactor.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrTwoFactorNotEnrolled) {
		return TwoFactorProvision{}, fmt.Errorf("%w: two-factor lookup: %v", ErrStorageFailure, err)
	}
	if err == nil && existing.Enabled {
		return TwoFactorProvision{}, ErrTwoFactorAlreadyEnabled
	}

	user, err := e.directory.UserByID(ctx, userID)
	if err != nil {
		return TwoFactorProvision{}, ErrUserNotFound
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return TwoFactorProvision{}, fmt.Errorf("%w: totp secret generation: %v", ErrStorageFailure, err)
	}

	plainCodes, hashedCodes, err := newBackupCodes(e.config.TwoFactor.BackupCodeCount)
	if err != nil {
		return TwoFactorProvision{}, fmt.Errorf("%w: backup code generation: %v", ErrStorageFailure, err)
	}

	entry := e.newEntry(ctx, actionTwoFactorEnrollBegan, "twofactor", internalaudit.CategorySecurity, SeverityInfo)
	entry.UserID = userID
	if err := e.twoFactor.SavePending(ctx, userID, secret, hashedCodes, entry); err != nil {
		return TwoFactorProvision{}, fmt.Errorf("%w: save pending enrollment: %v", ErrStorageFailure, err)
	}
	e.mirrorOnly(ctx, entry)

	e.metrics.TwoFactorEvent("enroll_began")
	return TwoFactorProvision{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, user.Email),
		BackupCodes:  plainCodes,
	}, nil
}

// ConfirmTwoFactorEnrollment verifies code against the pending secret
// and flips the record to enabled. A wrong code leaves the pending
// enrollment intact.
func (e *Engine) ConfirmTwoFactorEnrollment(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrTwoFactorNotEnrolled) {
			return ErrTwoFactorNotEnrolled
		}
		return fmt.Errorf("%w: two-factor lookup: %v", ErrStorageFailure, err)
	}
	if record.Enabled {
		return ErrTwoFactorAlreadyEnabled
	}

	ok, _, err := e.totp.VerifyCode(record.Secret, code, e.now())
	if err != nil {
		return fmt.Errorf("%w: totp verify: %v", ErrStorageFailure, err)
	}
	if !ok {
		e.metrics.TwoFactorEvent("confirm_rejected")
		return ErrTwoFactorInvalidCode
	}

	entry := e.newEntry(ctx, actionTwoFactorEnabled, "twofactor", internalaudit.CategorySecurity, SeverityInfo)
	entry.UserID = userID
	if err := e.twoFactor.Enable(ctx, userID, entry); err != nil {
		return fmt.Errorf("%w: enable two-factor: %v", ErrStorageFailure, err)
	}
	e.mirrorOnly(ctx, entry)

	e.metrics.TwoFactorEvent("enabled")
	return nil
}

// VerifyTwoFactorCode checks a TOTP code for an enabled enrollment.
func (e *Engine) VerifyTwoFactorCode(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrTwoFactorNotEnrolled) {
			return ErrTwoFactorNotEnrolled
		}
		return fmt.Errorf("%w: two-factor lookup: %v", ErrStorageFailure, err)
	}
	if !record.Enabled {
		return ErrTwoFactorNotEnrolled
	}

	ok, _, err := e.totp.VerifyCode(record.Secret, code, e.now())
	if err != nil {
		return fmt.Errorf("%w: totp verify: %v", ErrStorageFailure, err)
	}
	if !ok {
		e.metrics.TwoFactorEvent("verify_rejected")
		return ErrTwoFactorInvalidCode
	}

	e.metrics.TwoFactorEvent("verified")
	return nil
}

// ConsumeBackupCode burns a single-use recovery code for an enabled
// enrollment. Each code works exactly once.
func (e *Engine) ConsumeBackupCode(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrTwoFactorNotEnrolled) {
			return ErrTwoFactorNotEnrolled
		}
		return fmt.Errorf("%w: two-factor lookup: %v", ErrStorageFailure, err)
	}
	if !record.Enabled {
		return ErrTwoFactorNotEnrolled
	}

	entry := e.newEntry(ctx, actionTwoFactorBackupUsed, "twofactor", internalaudit.CategorySecurity, SeverityWarn)
	entry.UserID = userID
	consumed, err := e.twoFactor.ConsumeBackupCode(ctx, userID, hashBackupCode(code), entry)
	if err != nil {
		return fmt.Errorf("%w: consume backup code: %v", ErrStorageFailure, err)
	}
	if !consumed {
		e.metrics.TwoFactorEvent("backup_rejected")
		return ErrTwoFactorInvalidCode
	}
	e.mirrorOnly(ctx, entry)

	e.metrics.TwoFactorEvent("backup_used")
	return nil
}

// DisableTwoFactor removes the secret and all backup codes. The caller
// is responsible for authorizing the disable via OpTwoFactorManage
// before invoking it.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if _, err := e.twoFactor.Get(ctx, userID); err != nil {
		if errors.Is(err, ErrTwoFactorNotEnrolled) {
			return ErrTwoFactorNotEnrolled
		}
		return fmt.Errorf("%w: two-factor lookup: %v", ErrStorageFailure, err)
	}

	entry := e.newEntry(ctx, actionTwoFactorDisabled, "twofactor", internalaudit.CategorySecurity, SeverityWarn)
	entry.UserID = userID
	if err := e.twoFactor.Disable(ctx, userID, entry); err != nil {
		return fmt.Errorf("%w: disable two-factor: %v", ErrStorageFailure, err)
	}
	e.mirrorOnly(ctx, entry)

	e.metrics.TwoFactorEvent("disabled")
	return nil
}

const backupCodeBytes = 5

// newBackupCodes generates count codes in the form xxxxx-xxxxx over a
// lowercase base32 alphabet, plus their storage hashes.
func newBackupCodes(count int) ([]string, []BackupCode, error) {
	const alphabet = "abcdefghjkmnpqrstuvwxyz23456789"

	plain := make([]string, 0, count)
	hashed := make([]BackupCode, 0, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, backupCodeBytes*2)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, err
		}
		var sb strings.Builder
		for j, b := range raw {
			if j == backupCodeBytes {
				sb.WriteByte('-')
			}
			sb.WriteByte(alphabet[int(b)%len(alphabet)])
		}
		code := sb.String()
		plain = append(plain, code)
		hashed = append(hashed, BackupCode{Hash: hashBackupCode(code)})
	}
	return plain, hashed, nil
}

func hashBackupCode(code string) [32]byte {
	normalized := strings.ToLower(strings.TrimSpace(code))
	return sha256.Sum256([]byte(normalized))
}
