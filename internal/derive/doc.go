// Package derive computes program-derived addresses: deterministic
// addresses with no private key, owned by a program and authorised only by
// re-deriving them from their seeds.
//
// An address is SHA-256(seeds || nonce || programID || "ProgramDerivedAddress"),
// accepted only when the digest is not a valid edwards25519 point. The
// canonical nonce is the largest value in [1, 255] that yields an off-curve
// digest; FindProgramAddress searches downward from 255.
//
// Custody addresses for locks use two seeds, a domain tag per asset kind
// and the depositor identity. Associated holding accounts use
// [owner, token program, mint] under the associated-token program.
//
// The hashing and the nonce search are delegated to
// github.com/gagliardetto/solana-go, so addresses match what the Solana
// runtime derives for the same program and seeds. This package adds the
// typed errors, seed limit checks and the canonical-nonce Verify.
package derive
