package pgstore

import (
	"database/sql"

	"github.com/caretrail/accesscore"
	"github.com/caretrail/accesscore/internal/ledger"
)

// NewLedger returns the Postgres audit ledger. Appends are synchronous
// and the backing table rejects updates and deletes.
func NewLedger(db *sql.DB) accesscore.Ledger {
	return ledger.NewPG(db)
}
