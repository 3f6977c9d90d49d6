package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/caretrail/accesscore"
	"github.com/caretrail/accesscore/internal/ledger"
)

// Credentials owns password hashes and their history.
type Credentials struct {
	db *sql.DB
}

func NewCredentials(db *sql.DB) *Credentials {
	return &Credentials{db: db}
}

func (c *Credentials) CurrentHash(ctx context.Context, userID string) (string, error) {
	var hash sql.NullString
	err := c.db.QueryRowContext(ctx, `
		select c.password_hash
		from users u
		left join credentials c on c.user_id = u.id
		where u.id = $1
	`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", accesscore.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return hash.String, nil
}

func (c *Credentials) RecentHashes(ctx context.Context, userID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx, `
		select password_hash
		from password_history
		where user_id = $1
		order by replaced_at desc, id desc
		limit $2
	`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// ApplyPasswordReset replaces the credential in one transaction: the
// prior hash moves to history, history is pruned to keep entries, and
// the audit entry commits with the change. Either all of it lands or
// none of it does.
func (c *Credentials) ApplyPasswordReset(ctx context.Context, userID, newHash string, keep int, entry accesscore.AuditEntry) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var prior string
	err = tx.QueryRowContext(ctx,
		`select password_hash from credentials where user_id = $1 for update`,
		userID).Scan(&prior)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			insert into credentials (user_id, password_hash, updated_at)
			values ($1, $2, $3)
		`, userID, newHash, time.Now().UTC()); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err := tx.ExecContext(ctx, `
			insert into password_history (user_id, password_hash, replaced_at)
			values ($1, $2, $3)
		`, userID, prior, time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			update credentials set password_hash = $2, updated_at = $3
			where user_id = $1
		`, userID, newHash, time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			delete from password_history
			where user_id = $1
			  and id not in (
				select id from password_history
				where user_id = $1
				order by replaced_at desc, id desc
				limit $2
			  )
		`, userID, keep); err != nil {
			return err
		}
	}

	if err := ledger.AppendTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

func (c *Credentials) PruneHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`delete from password_history where replaced_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
