package derive

import (
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// SeedSigner is the proof that a program may act for one of its derived
// addresses. It can only be obtained by re-deriving the address from its
// seeds, so holding one is equivalent to knowing (programID, seeds, nonce).
//
// The package is internal; external callers never see a SeedSigner.
type SeedSigner struct {
	address ir.Pubkey
	program ir.Pubkey
}

// NewSeedSigner derives the address for seeds and nonce and returns a
// signer for it.
func NewSeedSigner(programID ir.Pubkey, seeds [][]byte, nonce uint8) (SeedSigner, error) {
	addr, err := CreateProgramAddress(seeds, nonce, programID)
	if err != nil {
		return SeedSigner{}, fmt.Errorf("seed signer: %w", err)
	}
	return SeedSigner{address: addr, program: programID}, nil
}

// SignerKey returns the address this signer authorises.
func (s SeedSigner) SignerKey() ir.Pubkey {
	return s.address
}

// Program returns the program the address was derived under.
func (s SeedSigner) Program() ir.Pubkey {
	return s.program
}

// Valid reports whether s was produced by NewSeedSigner.
func (s SeedSigner) Valid() bool {
	return !s.address.IsZero()
}
