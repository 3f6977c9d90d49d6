// Package pgstore provides the Postgres-backed collaborators of the
// engine: the identity directory, the credential store, the two-factor
// store, and the audit ledger.
//
// All mutating operations run in transactions; the credential reset in
// particular commits the hash update, the history append, and the audit
// entry atomically.
package pgstore
