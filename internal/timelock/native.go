package timelock

import (
	"errors"
	"strconv"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

// Registration is the outcome of a successful lock creation.
type Registration struct {
	Lock    ir.Pubkey
	Record  Record
	Reserve uint64 // Rent reserve paid by the depositor for the record

	// Token locks only.
	Vault        ir.Pubkey
	VaultCreated bool
}

// Result renders the registration as a log result object.
func (r Registration) Result() ir.IRObject {
	out := ir.IRObject{
		"lock":        ir.IRString(r.Lock.String()),
		"kind":        ir.IRString(r.Record.Kind.String()),
		"amount":      ir.IRInt(int64(r.Record.Amount)),
		"unlock_time": ir.IRInt(r.Record.UnlockTime),
		"nonce":       ir.IRInt(int64(r.Record.Nonce)),
		"state":       ir.IRString(r.Record.State.String()),
		"reserve":     ir.IRInt(int64(r.Reserve)),
	}
	if r.Record.HasMint() {
		out["mint"] = ir.IRString(r.Record.Mint.String())
		out["vault"] = ir.IRString(r.Vault.String())
		out["vault_created"] = ir.IRBool(r.VaultCreated)
	}
	return out
}

// Release is the outcome of a successful withdrawal or cancellation.
type Release struct {
	Lock        ir.Pubkey
	Kind        AssetKind
	Released    uint64 // Native: lamports swept; Token: tokens returned
	Reclaimed   uint64 // Token: record rent returned to the depositor
	Destination ir.Pubkey
}

// Result renders the release as a log result object.
func (r Release) Result() ir.IRObject {
	out := ir.IRObject{
		"lock":        ir.IRString(r.Lock.String()),
		"kind":        ir.IRString(r.Kind.String()),
		"released":    ir.IRInt(int64(r.Released)),
		"destination": ir.IRString(r.Destination.String()),
		"state":       ir.IRString(StateNameWithdrawn),
	}
	if r.Kind == KindToken {
		out["reclaimed"] = ir.IRInt(int64(r.Reclaimed))
	}
	return out
}

// InitializeLockNative registers a native lock for the signer. No balance
// moves beyond the record's rent reserve; FundNativeLock moves the principal.
func (p *Program) InitializeLockNative(c *ledger.Context, depositor ledger.Signer, amount, unlockTime int64) (Registration, error) {
	addr, rec, reserve, err := p.create(c, depositor, KindNative, amount, unlockTime, func(nonce uint8) Record {
		return Record{
			Depositor:  signerKey(depositor),
			Amount:     uint64(amount),
			UnlockTime: unlockTime,
			Nonce:      nonce,
			Kind:       KindNative,
		}
	})
	if err != nil {
		return Registration{}, err
	}

	p.logger.InfoContext(c.Ctx(), "native lock registered",
		"lock", addr.String(),
		"depositor", rec.Depositor.String(),
		"amount", rec.Amount,
		"unlock_time", rec.UnlockTime,
		"now", c.Now(),
	)
	return Registration{Lock: addr, Record: rec, Reserve: reserve}, nil
}

// FundNativeLock moves the registered amount from the depositor into the
// custody address. amount must equal the registered amount.
func (p *Program) FundNativeLock(c *ledger.Context, depositor ledger.Signer, lock ir.Pubkey, amount int64) (Registration, error) {
	rec, err := p.loadForUpdate(c, depositor, lock, KindNative)
	if err != nil {
		return Registration{}, err
	}
	next, err := transitionStored(c.Ctx(), rec.Kind, stateName(&rec), EventFund)
	if err != nil {
		return Registration{}, withLock(err, lock)
	}
	if err := checkAmount(lock, amount); err != nil {
		return Registration{}, err
	}
	if uint64(amount) != rec.Amount {
		return Registration{}, newError(ErrCodeFundAmountMismatch, lock, "").
			with("registered", strconv.FormatUint(rec.Amount, 10)).
			with("fund", strconv.FormatInt(amount, 10))
	}

	if err := c.Transfer(depositor, lock, rec.Amount); err != nil {
		return Registration{}, err
	}
	rec.State = next
	if err := p.store(c, lock, rec); err != nil {
		return Registration{}, err
	}

	p.logger.InfoContext(c.Ctx(), "native lock funded",
		"lock", lock.String(),
		"amount", rec.Amount,
	)
	return Registration{Lock: lock, Record: rec}, nil
}

// WithdrawNative closes a funded native lock after its unlock time and
// sweeps the whole custody balance, principal and reserve, to the depositor.
func (p *Program) WithdrawNative(c *ledger.Context, depositor ledger.Signer, lock ir.Pubkey) (Release, error) {
	rec, err := p.loadForUpdate(c, depositor, lock, KindNative)
	if err != nil {
		return Release{}, err
	}
	if _, err := transition(c.Ctx(), rec.Kind, stateName(&rec), EventWithdraw); err != nil {
		return Release{}, withLock(err, lock)
	}
	if err := checkUnlocked(lock, rec, c.Now()); err != nil {
		return Release{}, err
	}

	released, err := c.CloseAccount(p.id, lock, rec.Depositor)
	if err != nil {
		return Release{}, err
	}

	p.logger.InfoContext(c.Ctx(), "native lock withdrawn",
		"lock", lock.String(),
		"released", released,
		"now", c.Now(),
	)
	return Release{Lock: lock, Kind: KindNative, Released: released, Destination: rec.Depositor}, nil
}

// CancelNativeRegistration closes a registered but unfunded native lock,
// returning its rent reserve. The unlock time does not apply: nothing is
// in custody yet.
func (p *Program) CancelNativeRegistration(c *ledger.Context, depositor ledger.Signer, lock ir.Pubkey) (Release, error) {
	rec, err := p.loadForUpdate(c, depositor, lock, KindNative)
	if err != nil {
		return Release{}, err
	}
	if _, err := transition(c.Ctx(), rec.Kind, stateName(&rec), EventCancel); err != nil {
		return Release{}, withLock(err, lock)
	}

	released, err := c.CloseAccount(p.id, lock, rec.Depositor)
	if err != nil {
		return Release{}, err
	}

	p.logger.InfoContext(c.Ctx(), "native registration cancelled",
		"lock", lock.String(),
		"released", released,
	)
	return Release{Lock: lock, Kind: KindNative, Released: released, Destination: rec.Depositor}, nil
}

// withLock stamps lock on a timelock error raised before the address was
// known, such as a refused lifecycle transition.
func withLock(err error, lock ir.Pubkey) error {
	var te *Error
	if errors.As(err, &te) {
		te.Lock = lock
	}
	return err
}
