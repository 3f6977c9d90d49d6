package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/caretrail/accesscore"
	"github.com/caretrail/accesscore/internal/ledger"
)

// TwoFactor persists TOTP secrets and backup codes. State transitions
// commit together with their audit entry: a transition the ledger
// cannot record does not happen.
type TwoFactor struct {
	db *sql.DB
}

func NewTwoFactor(db *sql.DB) *TwoFactor {
	return &TwoFactor{db: db}
}

func (t *TwoFactor) Get(ctx context.Context, userID string) (accesscore.TwoFactorRecord, error) {
	var record accesscore.TwoFactorRecord
	err := t.db.QueryRowContext(ctx, `
		select user_id, secret, enabled, created_at, updated_at
		from two_factor
		where user_id = $1
	`, userID).Scan(&record.UserID, &record.Secret, &record.Enabled, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return accesscore.TwoFactorRecord{}, accesscore.ErrTwoFactorNotEnrolled
	}
	if err != nil {
		return accesscore.TwoFactorRecord{}, err
	}
	return record, nil
}

// SavePending replaces any earlier enrollment with a fresh disabled
// secret and its backup codes.
func (t *TwoFactor) SavePending(ctx context.Context, userID string, secret []byte, codes []accesscore.BackupCode, entry accesscore.AuditEntry) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		insert into two_factor (user_id, secret, enabled, created_at, updated_at)
		values ($1, $2, false, $3, $3)
		on conflict (user_id) do update
		set secret = excluded.secret, enabled = false,
		    created_at = excluded.created_at, updated_at = excluded.updated_at
	`, userID, secret, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`delete from backup_codes where user_id = $1`, userID); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `
			insert into backup_codes (user_id, code_hash, used)
			values ($1, $2, false)
		`, userID, code.Hash[:]); err != nil {
			return err
		}
	}

	if err := ledger.AppendTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *TwoFactor) Enable(ctx context.Context, userID string, entry accesscore.AuditEntry) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update two_factor set enabled = true, updated_at = $2
		where user_id = $1
	`, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return accesscore.ErrTwoFactorNotEnrolled
	}

	if err := ledger.AppendTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *TwoFactor) Disable(ctx context.Context, userID string, entry accesscore.AuditEntry) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from backup_codes where user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`delete from two_factor where user_id = $1`, userID); err != nil {
		return err
	}

	if err := ledger.AppendTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ConsumeBackupCode marks a matching unused code as used; the update is
// the atomicity point, so a code admits exactly one consumer. The audit
// entry commits with the burn and nothing is recorded on a miss.
func (t *TwoFactor) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte, entry accesscore.AuditEntry) (bool, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update backup_codes set used = true
		where user_id = $1 and code_hash = $2 and not used
	`, userID, hash[:])
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if err := ledger.AppendTx(ctx, tx, entry); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// DeleteStalePending drops enrollments that were never confirmed,
// together with their backup codes.
func (t *TwoFactor) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from backup_codes
		where user_id in (
			select user_id from two_factor
			where not enabled and created_at < $1
		)
	`, cutoff); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`delete from two_factor where not enabled and created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}
