package timelock

import (
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// ErrorCode identifies a program failure. Codes double as completion
// output cases in the operation log.
type ErrorCode string

const (
	ErrCodeTimeLockNotExpired       ErrorCode = "TimeLockNotExpired"
	ErrCodeInvalidAmount            ErrorCode = "InvalidAmount"
	ErrCodeUnlockInPast             ErrorCode = "UnlockInPast"
	ErrCodeWrongAssetKind           ErrorCode = "WrongAssetKind"
	ErrCodeInsufficientVaultBalance ErrorCode = "InsufficientVaultBalance"
	ErrCodeAuthorizationFailure     ErrorCode = "AuthorizationFailure"

	ErrCodeLockAlreadyExists      ErrorCode = "LockAlreadyExists"
	ErrCodeLockNotFound           ErrorCode = "LockNotFound"
	ErrCodeInvalidLockState       ErrorCode = "InvalidLockState"
	ErrCodeFundAmountMismatch     ErrorCode = "FundAmountMismatch"
	ErrCodeHoldingAccountMismatch ErrorCode = "HoldingAccountMismatch"
	ErrCodeInvalidArgument        ErrorCode = "InvalidArgument"
)

// errorNumbers are the numeric program error codes reported to clients.
var errorNumbers = map[ErrorCode]uint32{
	ErrCodeTimeLockNotExpired:       6000,
	ErrCodeInvalidAmount:            6001,
	ErrCodeUnlockInPast:             6002,
	ErrCodeAuthorizationFailure:     6003,
	ErrCodeWrongAssetKind:           6004,
	ErrCodeInsufficientVaultBalance: 6005,
	ErrCodeLockAlreadyExists:        6006,
	ErrCodeLockNotFound:             6007,
	ErrCodeInvalidLockState:         6008,
	ErrCodeFundAmountMismatch:       6009,
	ErrCodeHoldingAccountMismatch:   6010,
	ErrCodeInvalidArgument:          6011,
}

var errorMessages = map[ErrorCode]string{
	ErrCodeTimeLockNotExpired:       "time lock has not expired yet",
	ErrCodeInvalidAmount:            "invalid amount",
	ErrCodeUnlockInPast:             "unlock timestamp must be in the future",
	ErrCodeAuthorizationFailure:     "signer is not authorised for this lock",
	ErrCodeWrongAssetKind:           "incorrect asset kind for this operation",
	ErrCodeInsufficientVaultBalance: "vault balance is empty",
	ErrCodeLockAlreadyExists:        "a live lock already exists for this depositor and asset kind",
	ErrCodeLockNotFound:             "no lock record at this address",
	ErrCodeInvalidLockState:         "operation not allowed in the lock's current state",
	ErrCodeFundAmountMismatch:       "fund amount differs from the registered amount",
	ErrCodeHoldingAccountMismatch:   "holding account has the wrong owner or mint",
	ErrCodeInvalidArgument:          "invalid instruction argument",
}

// Error is a program failure.
type Error struct {
	Code    ErrorCode
	Message string
	Lock    ir.Pubkey // Custody address, zero if unknown
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if !e.Lock.IsZero() {
		return fmt.Sprintf("%s: %s (lock=%s)", e.Code, e.Message, e.Lock)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Number returns the numeric program error code, 0 for unknown codes.
func (e *Error) Number() uint32 {
	return errorNumbers[e.Code]
}

func newError(code ErrorCode, lock ir.Pubkey, detail string) *Error {
	msg := errorMessages[code]
	if detail != "" {
		msg = msg + ": " + detail
	}
	return &Error{Code: code, Message: msg, Lock: lock}
}

func (e *Error) with(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the program error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

// IsCode reports whether err is a program error with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
