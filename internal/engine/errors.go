package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// RuntimeError is an engine-level failure that no program produced.
type RuntimeError struct {
	Code      RuntimeErrorCode
	Message   string
	FlowToken string
	Action    ir.ActionRef
	Details   map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownAction: no handler is registered for the action.
	ErrCodeUnknownAction RuntimeErrorCode = "UnknownAction"

	// ErrCodeInvalidRequest: the request args cannot be decoded. Recorded
	// in the log like a program failure.
	ErrCodeInvalidRequest RuntimeErrorCode = "InvalidRequest"

	// ErrCodeStaleNonce: the signer already consumed this nonce or a
	// higher one. Recorded in the log; the ledger is untouched.
	ErrCodeStaleNonce RuntimeErrorCode = "StaleNonce"

	// ErrCodeStopped: the Run loop is no longer accepting requests.
	ErrCodeStopped RuntimeErrorCode = "EngineStopped"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.FlowToken != "" && e.Action != "":
		return fmt.Sprintf("%s: %s (flow=%s, action=%s)", e.Code, e.Message, e.FlowToken, e.Action)
	case e.Action != "":
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownAction reports whether err is an unknown-action error.
func IsUnknownAction(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeUnknownAction
}

// IsStopped reports whether err came from a stopped engine.
func IsStopped(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeStopped
}

// NewUnknownActionError creates a RuntimeError for an unregistered action.
func NewUnknownActionError(action ir.ActionRef) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownAction,
		Message: "no handler registered",
		Action:  action,
	}
}

// NewInvalidRequestError creates a RuntimeError for undecodable args.
func NewInvalidRequestError(action ir.ActionRef, key string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidRequest,
		Message: fmt.Sprintf("argument %q: %v", key, cause),
		Action:  action,
		Details: map[string]string{"arg": key},
	}
}

// IsStaleNonce reports whether err rejected a replayed or reordered nonce.
func IsStaleNonce(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeStaleNonce
}

// NewStaleNonceError creates a RuntimeError for a nonce at or below the
// signer's last consumed nonce.
func NewStaleNonceError(action ir.ActionRef, nonce, last int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStaleNonce,
		Message: fmt.Sprintf("nonce %d already used (last consumed %d)", nonce, last),
		Action:  action,
		Details: map[string]string{"nonce": fmt.Sprint(nonce), "last": fmt.Sprint(last)},
	}
}

func errStopped() *RuntimeError {
	return &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped"}
}
