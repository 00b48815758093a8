// Package ir holds the value types shared by every other timelock package:
// identities (Pubkey), the constrained JSON value model used for instruction
// arguments, canonical JSON, and the content-addressed invocation and
// completion records written to the operation log.
//
// ir imports nothing internal. Keep it that way.
//
// Constraints:
//   - No float types. Amounts and timestamps are int64/uint64.
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing and
//     for signed instruction messages.
//   - Ordering in the operation log uses the logical seq, never wall time.
package ir
