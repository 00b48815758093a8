// Package testutil provides deterministic stand-ins for the ledger's
// nondeterministic inputs: wall time, sequence numbers, flow tokens and
// identities.
package testutil
