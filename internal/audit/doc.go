// Package audit defines the audit event model and the optional mirror
// sinks.
//
// The authoritative audit record is the synchronous ledger append
// performed by the Engine; everything in this package is a
// non-authoritative mirror for streaming events to external consumers
// (SIEM export, tests). A full mirror buffer only increments a dropped
// counter and never blocks or fails the originating operation.
package audit
