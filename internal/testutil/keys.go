package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/roach88/timelock/internal/ir"
)

// Keypair is an ed25519 identity for tests.
type Keypair struct {
	Public  ir.Pubkey
	Private ed25519.PrivateKey
}

// NewKeypair derives a keypair deterministically from name, so the same
// name always yields the same identity.
func NewKeypair(name string) Keypair {
	seed := sha256.Sum256([]byte("timelock-test-key:" + name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub ir.Pubkey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return Keypair{Public: pub, Private: priv}
}

// Sign signs msg.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.Private, msg)
}

// SignInstruction signs the canonical instruction message for action,
// nonce and args.
func (k Keypair) SignInstruction(action string, nonce int64, args ir.IRObject) ([]byte, error) {
	msg, err := ir.SigningMessage(action, k.Public, nonce, args)
	if err != nil {
		return nil, err
	}
	return k.Sign(msg), nil
}

// Address returns a deterministic 32-byte address that has no known
// private key, for mints and other accounts that never sign.
func Address(name string) ir.Pubkey {
	return ir.Pubkey(sha256.Sum256([]byte("timelock-test-address:" + name)))
}
