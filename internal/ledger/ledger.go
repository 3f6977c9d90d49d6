// Package ledger implements the append-only audit store on Postgres.
//
// The table is write-once by construction: migrations revoke the
// UPDATE and DELETE privileges from public and install a trigger that
// raises on either, so immutability holds even against a compromised
// application tier. This package therefore only ever issues INSERT and
// SELECT.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caretrail/accesscore/internal/audit"
	"github.com/caretrail/accesscore/internal/ids"
)

// Filter narrows a ledger query. Zero fields match everything.
type Filter struct {
	TenantID string
	UserID   string
	Action   string
	Category string
	Severity string
	Since    time.Time
	Until    time.Time
	Limit    int
}

const defaultQueryLimit = 500

// PG is the Postgres ledger.
type PG struct {
	db *sql.DB
}

func NewPG(db *sql.DB) *PG {
	return &PG{db: db}
}

// Append inserts one entry. The entry ID is assigned here (ULID, so
// entries sort by time) unless the caller already set one.
func (l *PG) Append(ctx context.Context, entry audit.Event) error {
	return appendEntry(ctx, l.db, entry)
}

// AppendTx inserts one entry inside the caller's transaction, so a
// mutation and its audit record commit or roll back together.
func AppendTx(ctx context.Context, tx *sql.Tx, entry audit.Event) error {
	return appendEntry(ctx, tx, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEntry(ctx context.Context, db execer, entry audit.Event) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		insert into audit_entries
			(id, user_id, tenant_id, action, resource, resource_id, details, severity, category, occurred_at)
		values ($1, nullif($2,''), nullif($3,''), $4, $5, nullif($6,''), $7, $8, $9, $10)
	`,
		entry.ID, entry.UserID, entry.TenantID, entry.Action, entry.Resource,
		entry.ResourceID, details, entry.Severity, entry.Category, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first. Role gating happens in
// the engine; this store only filters.
func (l *PG) Query(ctx context.Context, filter Filter) ([]audit.Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if filter.TenantID != "" {
		add("tenant_id = ?", filter.TenantID)
	}
	if filter.UserID != "" {
		add("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		add("action = ?", filter.Action)
	}
	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Severity != "" {
		add("severity = ?", filter.Severity)
	}
	if !filter.Since.IsZero() {
		add("occurred_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("occurred_at < ?", filter.Until)
	}

	query := `
		select id, coalesce(user_id,''), coalesce(tenant_id,''), action, resource,
		       coalesce(resource_id,''), details, severity, category, occurred_at
		from audit_entries`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" order by occurred_at desc, id desc limit $%d", len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var result []audit.Event
	for rows.Next() {
		var (
			entry   audit.Event
			details []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.TenantID, &entry.Action, &entry.Resource,
			&entry.ResourceID, &details, &entry.Severity, &entry.Category, &entry.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
