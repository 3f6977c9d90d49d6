// Package authz implements the tenant-scoped authorization policy engine.
//
// The package exposes a single pure decision function, [Authorize], which
// evaluates a fixed, ordered predicate chain against a resolved
// [Context] and a declared [Operation]. Roles and permissions form a
// closed enumeration: every role maps to an explicit permission set and
// no caller-supplied strings participate in the decision.
//
// Authorize performs no I/O and holds no state; it is safe to evaluate
// concurrently without synchronization.
package authz
