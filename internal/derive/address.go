package derive

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"

	"github.com/roach88/timelock/internal/ir"
)

const (
	// MaxSeedLength is the longest single seed accepted.
	MaxSeedLength = solana.MaxSeedLength
	// MaxSeeds bounds the seed count, nonce included.
	MaxSeeds = solana.MaxSeeds
)

var (
	// ErrOnCurve means the digest is a valid ed25519 public key and
	// therefore may have a private key.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableNonce means every nonce produced an on-curve digest.
	ErrNoViableNonce = errors.New("no viable nonce for seeds")

	// ErrSeeds reports malformed seeds.
	ErrSeeds = errors.New("invalid seeds")

	// ErrMismatch is returned by Verify when the expected address or the
	// stored nonce does not match the canonical derivation.
	ErrMismatch = errors.New("derived address mismatch")
)

// IsOnCurve reports whether b decodes as an edwards25519 point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// checkSeeds applies the seed limits up front so that any error from the
// solana-go derivation can only mean the digest landed on the curve.
func checkSeeds(seeds [][]byte) error {
	if len(seeds)+1 > MaxSeeds {
		return fmt.Errorf("%w: %d seeds exceeds %d", ErrSeeds, len(seeds)+1, MaxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrSeeds, i, len(seed))
		}
	}
	return nil
}

// withNonce copies seeds and appends the nonce seed; solana-go appends in
// place, which would alias the caller's backing array.
func withNonce(seeds [][]byte, nonce uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{nonce})
}

func toSolana(pk ir.Pubkey) solana.PublicKey { return solana.PublicKey(pk) }

func fromSolana(pk solana.PublicKey) ir.Pubkey { return ir.Pubkey(pk) }

// CreateProgramAddress derives the address for seeds and an explicit nonce.
func CreateProgramAddress(seeds [][]byte, nonce uint8, programID ir.Pubkey) (ir.Pubkey, error) {
	if err := checkSeeds(seeds); err != nil {
		return ir.Pubkey{}, err
	}
	addr, err := solana.CreateProgramAddress(withNonce(seeds, nonce), toSolana(programID))
	if err != nil {
		return ir.Pubkey{}, fmt.Errorf("%w: %v", ErrOnCurve, err)
	}
	return fromSolana(addr), nil
}

// FindProgramAddress returns the canonical address and nonce for seeds.
// The search runs from 255 downward; nonce 0 is never used, matching the
// on-chain runtime.
func FindProgramAddress(seeds [][]byte, programID ir.Pubkey) (ir.Pubkey, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return ir.Pubkey{}, 0, err
	}
	owned := make([][]byte, len(seeds))
	copy(owned, seeds)
	addr, nonce, err := solana.FindProgramAddress(owned, toSolana(programID))
	if err != nil {
		return ir.Pubkey{}, 0, fmt.Errorf("%w: %v", ErrNoViableNonce, err)
	}
	return fromSolana(addr), nonce, nil
}

// Verify checks that expected and nonce are exactly the canonical
// derivation for seeds. A non-canonical nonce that happens to produce an
// off-curve address is still rejected.
func Verify(seeds [][]byte, nonce uint8, programID, expected ir.Pubkey) error {
	addr, canonical, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return err
	}
	if canonical != nonce {
		return fmt.Errorf("%w: nonce %d, canonical %d", ErrMismatch, nonce, canonical)
	}
	if addr != expected {
		return fmt.Errorf("%w: got %s, derived %s", ErrMismatch, expected, addr)
	}
	return nil
}

// LockSeeds returns the custody-address seeds for a domain tag and depositor.
func LockSeeds(tag string, depositor ir.Pubkey) [][]byte {
	return [][]byte{[]byte(tag), depositor.Bytes()}
}

// LockAddress derives the custody address for (tag, depositor) under programID.
func LockAddress(programID ir.Pubkey, tag string, depositor ir.Pubkey) (ir.Pubkey, uint8, error) {
	return FindProgramAddress(LockSeeds(tag, depositor), programID)
}

// AssociatedHoldingAddress derives the canonical token holding account
// for owner and mint.
func AssociatedHoldingAddress(owner, mint ir.Pubkey) (ir.Pubkey, uint8, error) {
	addr, nonce, err := solana.FindAssociatedTokenAddress(toSolana(owner), toSolana(mint))
	if err != nil {
		return ir.Pubkey{}, 0, fmt.Errorf("%w: %v", ErrNoViableNonce, err)
	}
	return fromSolana(addr), nonce, nil
}
