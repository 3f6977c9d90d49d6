// Package stores contains the persistence adapters owned by the engine:
// the Redis reset-token store and the Postgres-backed credential,
// two-factor, and directory stores.
//
// Redis artifacts carry TTLs and expire on their own; Postgres rows are
// additionally guarded by row-level security policies installed by the
// migrations (see internal/pg), so a compromised application tier
// cannot cross tenants or rewrite audit history even with a live
// connection.
package stores
