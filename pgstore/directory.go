package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/caretrail/accesscore"
	"github.com/caretrail/accesscore/authz"
)

// Directory reads identities and memberships. It performs no caching:
// the resolver depends on seeing membership changes immediately.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) UserByID(ctx context.Context, userID string) (accesscore.UserRecord, error) {
	return d.userBy(ctx, `select id, email, active, created_at from users where id = $1`, userID)
}

func (d *Directory) UserByEmail(ctx context.Context, email string) (accesscore.UserRecord, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return d.userBy(ctx, `select id, email, active, created_at from users where lower(email) = $1`, normalized)
}

func (d *Directory) userBy(ctx context.Context, query, arg string) (accesscore.UserRecord, error) {
	var user accesscore.UserRecord
	err := d.db.QueryRowContext(ctx, query, arg).
		Scan(&user.UserID, &user.Email, &user.Active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return accesscore.UserRecord{}, accesscore.ErrUserNotFound
	}
	if err != nil {
		return accesscore.UserRecord{}, err
	}
	return user, nil
}

// Memberships returns every membership row for the user. Role names are
// parsed against the closed role set; unknown names fail closed to
// RoleNone and are skipped by the resolver.
func (d *Directory) Memberships(ctx context.Context, userID string) ([]accesscore.Membership, error) {
	rows, err := d.db.QueryContext(ctx, `
		select user_id, tenant_id, role, active, joined_at
		from memberships
		where user_id = $1
		order by joined_at asc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []accesscore.Membership
	for rows.Next() {
		var (
			m        accesscore.Membership
			roleName string
		)
		if err := rows.Scan(&m.UserID, &m.TenantID, &roleName, &m.Active, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = authz.ParseRole(roleName)
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
