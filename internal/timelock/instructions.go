package timelock

import (
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

// Instruction names, as they appear in signed requests and the log.
const (
	ActionInitializeLockNative     ir.ActionRef = "timelock.initialize_lock_native"
	ActionFundNativeLock           ir.ActionRef = "timelock.fund_native_lock"
	ActionWithdrawNative           ir.ActionRef = "timelock.withdraw_native"
	ActionCancelNativeRegistration ir.ActionRef = "timelock.cancel_native_registration"
	ActionInitializeLockToken      ir.ActionRef = "timelock.initialize_lock_spl"
	ActionWithdrawToken            ir.ActionRef = "timelock.withdraw_spl"
)

// Actions lists the instructions Execute accepts.
func Actions() []ir.ActionRef {
	return []ir.ActionRef{
		ActionInitializeLockNative,
		ActionFundNativeLock,
		ActionWithdrawNative,
		ActionCancelNativeRegistration,
		ActionInitializeLockToken,
		ActionWithdrawToken,
	}
}

// Execute decodes args for action and runs it. The result is the object
// recorded in the log on success.
func (p *Program) Execute(c *ledger.Context, action ir.ActionRef, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
	switch action {
	case ActionInitializeLockNative:
		amount, unlock, err := creationArgs(args)
		if err != nil {
			return nil, err
		}
		reg, err := p.InitializeLockNative(c, signer, amount, unlock)
		if err != nil {
			return nil, err
		}
		return reg.Result(), nil

	case ActionFundNativeLock:
		lock, err := pubkeyArg(args, "lock")
		if err != nil {
			return nil, err
		}
		amount, err := intArg(args, "amount")
		if err != nil {
			return nil, err
		}
		reg, err := p.FundNativeLock(c, signer, lock, amount)
		if err != nil {
			return nil, err
		}
		return reg.Result(), nil

	case ActionWithdrawNative, ActionCancelNativeRegistration:
		lock, err := pubkeyArg(args, "lock")
		if err != nil {
			return nil, err
		}
		var rel Release
		if action == ActionWithdrawNative {
			rel, err = p.WithdrawNative(c, signer, lock)
		} else {
			rel, err = p.CancelNativeRegistration(c, signer, lock)
		}
		if err != nil {
			return nil, err
		}
		return rel.Result(), nil

	case ActionInitializeLockToken:
		amount, unlock, err := creationArgs(args)
		if err != nil {
			return nil, err
		}
		mint, err := pubkeyArg(args, "mint")
		if err != nil {
			return nil, err
		}
		source, err := optionalPubkeyArg(args, "source")
		if err != nil {
			return nil, err
		}
		reg, err := p.InitializeLockToken(c, signer, TokenLockParams{
			Amount:     amount,
			UnlockTime: unlock,
			Mint:       mint,
			Source:     source,
		})
		if err != nil {
			return nil, err
		}
		return reg.Result(), nil

	case ActionWithdrawToken:
		lock, err := pubkeyArg(args, "lock")
		if err != nil {
			return nil, err
		}
		dest, err := optionalPubkeyArg(args, "destination")
		if err != nil {
			return nil, err
		}
		rel, err := p.WithdrawToken(c, signer, lock, dest)
		if err != nil {
			return nil, err
		}
		return rel.Result(), nil
	}

	return nil, newError(ErrCodeInvalidArgument, ir.Pubkey{}, "unknown instruction "+string(action))
}

func creationArgs(args ir.IRObject) (amount, unlock int64, err error) {
	if amount, err = intArg(args, "amount"); err != nil {
		return 0, 0, err
	}
	if unlock, err = intArg(args, "unlock_time"); err != nil {
		return 0, 0, err
	}
	return amount, unlock, nil
}

func intArg(args ir.IRObject, key string) (int64, error) {
	v, err := args.Int(key)
	if err != nil {
		return 0, newError(ErrCodeInvalidArgument, ir.Pubkey{}, err.Error())
	}
	return v, nil
}

func pubkeyArg(args ir.IRObject, key string) (ir.Pubkey, error) {
	v, err := args.Pubkey(key)
	if err != nil {
		return ir.Pubkey{}, newError(ErrCodeInvalidArgument, ir.Pubkey{}, err.Error())
	}
	return v, nil
}

func optionalPubkeyArg(args ir.IRObject, key string) (ir.Pubkey, error) {
	v, _, err := args.OptionalPubkey(key)
	if err != nil {
		return ir.Pubkey{}, newError(ErrCodeInvalidArgument, ir.Pubkey{}, err.Error())
	}
	return v, nil
}
