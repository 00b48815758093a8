package ir

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length of an identity or address in bytes.
const PubkeySize = 32

// Pubkey is a 32-byte ledger identity. Depositors are ed25519 public keys;
// custody and holding-account addresses are derived and have no private key.
type Pubkey [PubkeySize]byte

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("parse pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("parse pubkey %q: got %d bytes, want %d", s, len(raw), PubkeySize)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePubkey is like ParsePubkey but panics on error.
// Use only for constants and tests.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies b into a Pubkey. b must be exactly 32 bytes.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("pubkey: got %d bytes, want %d", len(b), PubkeySize)
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key bytes.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeySize)
	copy(out, p[:])
	return out
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Equal reports whether p and o are the same key.
func (p Pubkey) Equal(o Pubkey) bool {
	return bytes.Equal(p[:], o[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
