package timelock

import (
	"strconv"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
)

// Guards are pure predicates over loaded state and the single time
// reading of the transaction. They never touch the ledger.

func checkAmount(lock ir.Pubkey, amount int64) error {
	if amount <= 0 {
		return newError(ErrCodeInvalidAmount, lock, "amount must be positive").
			with("amount", strconv.FormatInt(amount, 10))
	}
	return nil
}

func checkUnlockInFuture(lock ir.Pubkey, unlockTime, now int64) error {
	if unlockTime <= now {
		return newError(ErrCodeUnlockInPast, lock, "").
			with("unlock_time", strconv.FormatInt(unlockTime, 10)).
			with("now", strconv.FormatInt(now, 10))
	}
	return nil
}

// checkMint requires a token lock to name its asset class. The zero key
// is the system program, never a mint.
func checkMint(mint ir.Pubkey) error {
	if mint.IsZero() {
		return newError(ErrCodeInvalidArgument, ir.Pubkey{}, "token lock requires a mint").
			with("mint", mint.String())
	}
	return nil
}

func checkUnlocked(lock ir.Pubkey, r Record, now int64) error {
	if now < r.UnlockTime {
		return newError(ErrCodeTimeLockNotExpired, lock, "").
			with("unlock_time", strconv.FormatInt(r.UnlockTime, 10)).
			with("now", strconv.FormatInt(now, 10))
	}
	return nil
}

func checkKind(lock ir.Pubkey, r Record, want AssetKind) error {
	if r.Kind != want {
		return newError(ErrCodeWrongAssetKind, lock, "lock holds a "+r.Kind.String()+" asset").
			with("want", want.String()).
			with("have", r.Kind.String())
	}
	return nil
}

func checkAuthority(lock ir.Pubkey, r Record, signer ir.Pubkey) error {
	if signer.IsZero() || signer != r.Depositor {
		return newError(ErrCodeAuthorizationFailure, lock, "signer is not the depositor").
			with("signer", signer.String())
	}
	return nil
}

// checkDerivation re-derives the custody address from the record's kind
// tag, depositor and stored nonce. The stored nonce must be the canonical
// one and the result must equal lock.
func checkDerivation(programID, lock ir.Pubkey, r Record) error {
	if err := derive.Verify(derive.LockSeeds(r.Kind.Tag(), r.Depositor), r.Nonce, programID, lock); err != nil {
		return newError(ErrCodeAuthorizationFailure, lock, err.Error())
	}
	return nil
}

func checkVaultBalance(lock ir.Pubkey, balance uint64) error {
	if balance == 0 {
		return newError(ErrCodeInsufficientVaultBalance, lock, "")
	}
	return nil
}
