// Package session is the Redis-backed session collaborator. It stores
// raw session identity only: the engine re-derives tenant and role from
// the directory on every request, so nothing here grants scope.
//
// The outward credential is an HS256 JWT wrapping the session id. The
// JWT carries no claims beyond subject and expiry; validity is decided
// by the Redis record, so bulk revocation after a credential change is
// immediate.
package session
