package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// ErrorCode categorizes ledger failures.
type ErrorCode string

const (
	// ErrCodeInsufficientFunds: a debit exceeds the source balance.
	ErrCodeInsufficientFunds ErrorCode = "InsufficientFunds"

	// ErrCodeAccountNotFound: a referenced account does not exist.
	ErrCodeAccountNotFound ErrorCode = "AccountNotFound"

	// ErrCodeAccountAlreadyExists: an account was created at an occupied address.
	ErrCodeAccountAlreadyExists ErrorCode = "AccountAlreadyExists"

	// ErrCodeMintMismatch: a token transfer between holding accounts of different mints.
	ErrCodeMintMismatch ErrorCode = "MintMismatch"

	// ErrCodeOwnerMismatch: the signer does not control the account.
	ErrCodeOwnerMismatch ErrorCode = "OwnerMismatch"

	// ErrCodeMissingSignature: a required signature is absent or invalid.
	ErrCodeMissingSignature ErrorCode = "MissingSignature"

	// ErrCodeOverflow: a credit would exceed the storable balance range.
	ErrCodeOverflow ErrorCode = "ArithmeticOverflow"
)

// Error is a ledger-level failure.
type Error struct {
	Code    ErrorCode
	Message string
	Account ir.Pubkey
}

// Error implements the error interface.
func (e *Error) Error() string {
	if !e.Account.IsZero() {
		return fmt.Sprintf("%s: %s (account=%s)", e.Code, e.Message, e.Account)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, account ir.Pubkey, format string, args ...any) *Error {
	return &Error{Code: code, Account: account, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ledger error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Code, true
	}
	return "", false
}

// IsCode reports whether err is a ledger error with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
