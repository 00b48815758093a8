// Package store provides SQLite-backed storage for the local ledger and
// its operation log.
//
// Tables:
//   - accounts: native balances, owning program, raw account data
//     (lock records live here, in the data of their custody account)
//   - token_mints / token_accounts: fungible-token classes and holding accounts
//   - invocations / completions: append-only, content-addressed operation log
//
// Every ledger mutation runs inside InTx. A transaction either commits all
// of its writes or none of them. The pool holds a single connection, so
// transactions are serialised: two instructions touching the same lock can
// never interleave.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers while a writer is active
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Log queries order by seq ASC, id ASC COLLATE BINARY so results are
// identical across runs.
package store
