// Package engine executes signed instructions against the ledger.
//
// One instruction is processed at a time. For each one the engine:
//
//  1. verifies the ed25519 signature over the canonical instruction message
//  2. stamps an invocation with a flow token and a logical seq from Clock
//  3. runs the handler inside one ledger transaction
//  4. records the invocation and its completion in the operation log
//
// On success the log entries commit in the same transaction as the ledger
// writes. On failure the ledger transaction rolls back and the invocation
// and completion are written afterwards in their own transaction, with
// Committed=false, so every attempt is auditable.
//
// Callers either call Execute directly or Submit requests to a running
// Run loop; both paths share a single writer.
//
// Sequence numbers come from a logical clock, never from wall time. Wall
// time enters only through the ledger's oracle.
package engine
