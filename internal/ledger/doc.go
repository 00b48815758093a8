// Package ledger is the local host ledger the timelock program runs on.
//
// It holds native balances, fungible-token mints and holding accounts in
// the store and exposes the primitives a program may use: native
// transfers, account creation and closure, token transfers and associated
// holding accounts. All primitives run inside Runtime.Transact, which
// opens one store transaction and reads the time oracle exactly once.
// If the callback fails, nothing it did is kept.
//
// Authority is expressed with Signer values. A KeySigner proves that an
// ed25519 signature was verified for a key; a derive.SeedSigner proves
// that the caller re-derived a program address from its seeds.
package ledger
