package timelock

import (
	"log/slog"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

// Program is the timelock program bound to its program ID.
type Program struct {
	id     ir.Pubkey
	logger *slog.Logger
}

// NewProgram creates the program. A nil logger uses slog.Default().
func NewProgram(id ir.Pubkey, logger *slog.Logger) *Program {
	if logger == nil {
		logger = slog.Default()
	}
	return &Program{id: id, logger: logger}
}

// ID returns the program ID locks are derived under.
func (p *Program) ID() ir.Pubkey {
	return p.id
}

// LockInfo describes a live lock.
type LockInfo struct {
	Address  ir.Pubkey
	Record   Record
	Lamports uint64 // Native balance at the custody address

	// Token locks only.
	Vault        ir.Pubkey
	VaultBalance uint64
}

// Result renders the info as a log result object.
func (l LockInfo) Result() ir.IRObject {
	out := ir.IRObject{
		"lock":        ir.IRString(l.Address.String()),
		"depositor":   ir.IRString(l.Record.Depositor.String()),
		"kind":        ir.IRString(l.Record.Kind.String()),
		"amount":      ir.IRInt(int64(l.Record.Amount)),
		"unlock_time": ir.IRInt(l.Record.UnlockTime),
		"nonce":       ir.IRInt(int64(l.Record.Nonce)),
		"state":       ir.IRString(l.Record.State.String()),
		"lamports":    ir.IRInt(int64(l.Lamports)),
	}
	if l.Record.HasMint() {
		out["mint"] = ir.IRString(l.Record.Mint.String())
		out["vault"] = ir.IRString(l.Vault.String())
		out["vault_balance"] = ir.IRInt(int64(l.VaultBalance))
	}
	return out
}

// DeriveLockAddress returns the custody address and canonical nonce for a
// depositor's lock of kind.
func (p *Program) DeriveLockAddress(depositor ir.Pubkey, kind AssetKind) (ir.Pubkey, uint8, error) {
	return derive.LockAddress(p.id, kind.Tag(), depositor)
}

// GetLock loads and verifies the live lock of depositor for kind.
func (p *Program) GetLock(c *ledger.Context, depositor ir.Pubkey, kind AssetKind) (LockInfo, error) {
	addr, _, err := p.DeriveLockAddress(depositor, kind)
	if err != nil {
		return LockInfo{}, err
	}
	return p.lockInfo(c, addr)
}

// LockAt loads and verifies the lock at a custody address.
func (p *Program) LockAt(c *ledger.Context, addr ir.Pubkey) (LockInfo, error) {
	return p.lockInfo(c, addr)
}

func (p *Program) lockInfo(c *ledger.Context, addr ir.Pubkey) (LockInfo, error) {
	lamports, rec, err := p.load(c, addr)
	if err != nil {
		return LockInfo{}, err
	}
	if err := checkDerivation(p.id, addr, rec); err != nil {
		return LockInfo{}, err
	}

	info := LockInfo{Address: addr, Record: rec, Lamports: lamports}
	if rec.HasMint() {
		info.Vault, info.VaultBalance, err = vaultBalance(c, addr, rec.Mint)
		if err != nil {
			return LockInfo{}, err
		}
	}
	return info, nil
}

// load reads and decodes the record stored at addr.
func (p *Program) load(c *ledger.Context, addr ir.Pubkey) (uint64, Record, error) {
	acct, err := c.Account(addr)
	if ledger.IsCode(err, ledger.ErrCodeAccountNotFound) {
		return 0, Record{}, newError(ErrCodeLockNotFound, addr, "")
	}
	if err != nil {
		return 0, Record{}, err
	}
	if acct.Owner != p.id {
		if acct.Owner == ir.SystemProgramID && len(acct.Data) == 0 {
			return 0, Record{}, newError(ErrCodeLockNotFound, addr, "address holds only a plain balance")
		}
		return 0, Record{}, newError(ErrCodeAuthorizationFailure, addr, "account is not owned by the timelock program")
	}
	rec, err := DecodeRecord(acct.Data)
	if err != nil {
		return 0, Record{}, newError(ErrCodeAuthorizationFailure, addr, err.Error())
	}
	return acct.Lamports, rec, nil
}

// store encodes rec into the account data at addr.
func (p *Program) store(c *ledger.Context, addr ir.Pubkey, rec Record) error {
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	return c.SetData(p.id, addr, data)
}

// loadForUpdate loads the record at lock and runs the checks shared by
// every operation on an existing lock, in order: derivation, authority,
// kind.
func (p *Program) loadForUpdate(c *ledger.Context, signer ledger.Signer, lock ir.Pubkey, kind AssetKind) (Record, error) {
	_, rec, err := p.load(c, lock)
	if err != nil {
		return Record{}, err
	}
	if err := checkDerivation(p.id, lock, rec); err != nil {
		return Record{}, err
	}
	if err := checkAuthority(lock, rec, signerKey(signer)); err != nil {
		return Record{}, err
	}
	if err := checkKind(lock, rec, kind); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// create runs the creation checks shared by both kinds and allocates the
// record account. It returns the custody address, nonce and reserve paid.
func (p *Program) create(c *ledger.Context, depositor ledger.Signer, kind AssetKind, amount, unlockTime int64, build func(nonce uint8) Record) (ir.Pubkey, Record, uint64, error) {
	key := signerKey(depositor)
	if key.IsZero() {
		return ir.Pubkey{}, Record{}, 0, newError(ErrCodeAuthorizationFailure, ir.Pubkey{}, "no depositor signature")
	}
	seeds := derive.LockSeeds(kind.Tag(), key)
	addr, nonce, err := derive.FindProgramAddress(seeds, p.id)
	if err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}

	if err := checkAmount(addr, amount); err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}
	if err := checkUnlockInFuture(addr, unlockTime, c.Now()); err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}
	if _, _, err := p.load(c, addr); err == nil {
		return ir.Pubkey{}, Record{}, 0, newError(ErrCodeLockAlreadyExists, addr, "")
	} else if !IsCode(err, ErrCodeLockNotFound) {
		return ir.Pubkey{}, Record{}, 0, err
	}

	event := EventRegister
	if kind == KindToken {
		event = EventLock
	}
	state, err := transitionStored(c.Ctx(), kind, StateNameUninitialized, event)
	if err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}

	rec := build(nonce)
	rec.State = state
	data, err := rec.Encode()
	if err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}

	pda, err := derive.NewSeedSigner(p.id, seeds, nonce)
	if err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}
	reserve, err := c.CreateAccount(depositor, pda, p.id, data)
	if err != nil {
		return ir.Pubkey{}, Record{}, 0, err
	}
	return addr, rec, reserve, nil
}

func signerKey(s ledger.Signer) ir.Pubkey {
	if s == nil {
		return ir.Pubkey{}
	}
	return s.SignerKey()
}

func vaultBalance(c *ledger.Context, custody, mint ir.Pubkey) (ir.Pubkey, uint64, error) {
	vault, _, err := derive.AssociatedHoldingAddress(custody, mint)
	if err != nil {
		return ir.Pubkey{}, 0, err
	}
	holding, err := c.HoldingAccount(vault)
	if ledger.IsCode(err, ledger.ErrCodeAccountNotFound) {
		return vault, 0, nil
	}
	if err != nil {
		return ir.Pubkey{}, 0, err
	}
	return vault, holding.Amount, nil
}
