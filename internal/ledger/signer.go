package ledger

import (
	"crypto/ed25519"

	"github.com/roach88/timelock/internal/ir"
)

// Signer is anything that can authorise an action on one address.
type Signer interface {
	SignerKey() ir.Pubkey
}

// KeySigner is proof that a signature by a key was verified.
// The zero value authorises nothing.
type KeySigner struct {
	key ir.Pubkey
}

// SignerKey implements Signer.
func (s KeySigner) SignerKey() ir.Pubkey {
	return s.key
}

// VerifyKeySigner checks sig over msg with key and returns a signer for it.
func VerifyKeySigner(key ir.Pubkey, msg, sig []byte) (KeySigner, error) {
	if len(sig) != ed25519.SignatureSize {
		return KeySigner{}, newError(ErrCodeMissingSignature, key, "signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(key.Bytes()), msg, sig) {
		return KeySigner{}, newError(ErrCodeMissingSignature, key, "signature verification failed")
	}
	return KeySigner{key: key}, nil
}

// requireSigner checks that signer authorises addr.
func requireSigner(signer Signer, addr ir.Pubkey) error {
	if signer == nil || signer.SignerKey().IsZero() {
		return newError(ErrCodeMissingSignature, addr, "no signer")
	}
	if signer.SignerKey() != addr {
		return newError(ErrCodeMissingSignature, addr, "signer %s cannot act for this account", signer.SignerKey())
	}
	return nil
}
