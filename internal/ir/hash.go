package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity and signed messages.
// The version suffix leaves room for algorithm migration.
const (
	DomainInvocation = "timelock/invocation/v1"
	DomainCompletion = "timelock/completion/v1"
	DomainMessage    = "timelock/message/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID of an invocation.
// The signer is part of the identity: the same args signed by two
// identities are two different invocations.
func InvocationID(flowToken, actionURI, signer string, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"flow_token": IRString(flowToken),
		"action_uri": IRString(actionURI),
		"signer":     IRString(signer),
		"args":       args,
		"seq":        IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID computes the content-addressed ID of a completion.
func CompletionID(invocationID, outputCase string, result IRObject, seq int64) (string, error) {
	obj := IRObject{
		"invocation_id": IRString(invocationID),
		"output_case":   IRString(outputCase),
		"result":        result,
		"seq":           IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CompletionID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainCompletion, canonical), nil
}

// SigningMessage returns the bytes a depositor signs to authorise an
// instruction: the domain prefix, a null byte, then the canonical JSON of
// {"action", "args", "nonce", "signer"}.
//
// The nonce binds the signature to one use. The engine accepts a signer's
// instruction only when its nonce is above every nonce that signer has
// already consumed, so a captured request cannot be replayed.
func SigningMessage(actionURI string, signer Pubkey, nonce int64, args IRObject) ([]byte, error) {
	if args == nil {
		args = IRObject{}
	}
	canonical, err := MarshalCanonical(IRObject{
		"action": IRString(actionURI),
		"args":   args,
		"nonce":  IRInt(nonce),
		"signer": IRString(signer.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}

	msg := make([]byte, 0, len(DomainMessage)+1+len(canonical))
	msg = append(msg, DomainMessage...)
	msg = append(msg, 0x00)
	msg = append(msg, canonical...)
	return msg, nil
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(flowToken, actionURI, signer string, args IRObject, seq int64) string {
	id, err := InvocationID(flowToken, actionURI, signer, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
