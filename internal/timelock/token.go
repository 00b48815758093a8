package timelock

import (
	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
)

// TokenLockParams are the inputs of InitializeLockToken.
type TokenLockParams struct {
	Amount     int64
	UnlockTime int64
	Mint       ir.Pubkey
	// Source is the depositor's holding account to debit. Zero selects the
	// depositor's associated holding account for Mint.
	Source ir.Pubkey
}

// InitializeLockToken creates a token lock and moves Amount tokens into
// the custody vault in one step. The vault is the associated holding
// account of the custody address and is created if absent.
func (p *Program) InitializeLockToken(c *ledger.Context, depositor ledger.Signer, params TokenLockParams) (Registration, error) {
	key := signerKey(depositor)
	if err := checkMint(params.Mint); err != nil {
		return Registration{}, err
	}

	addr, rec, reserve, err := p.create(c, depositor, KindToken, params.Amount, params.UnlockTime, func(nonce uint8) Record {
		return Record{
			Depositor:  key,
			Amount:     uint64(params.Amount),
			UnlockTime: params.UnlockTime,
			Nonce:      nonce,
			Kind:       KindToken,
			Mint:       params.Mint,
		}
	})
	if err != nil {
		return Registration{}, err
	}

	if _, err := c.Mint(params.Mint); err != nil {
		return Registration{}, err
	}
	source, err := p.depositorHolding(c, addr, key, params.Mint, params.Source)
	if err != nil {
		return Registration{}, err
	}

	vault, created, err := c.EnsureAssociatedHoldingAccount(depositor, addr, params.Mint)
	if err != nil {
		return Registration{}, err
	}
	if err := c.TokenTransfer(depositor, source.Address, vault, rec.Amount); err != nil {
		return Registration{}, err
	}

	p.logger.InfoContext(c.Ctx(), "token lock created",
		"lock", addr.String(),
		"depositor", key.String(),
		"mint", params.Mint.String(),
		"vault", vault.String(),
		"amount", rec.Amount,
		"unlock_time", rec.UnlockTime,
		"now", c.Now(),
	)
	return Registration{Lock: addr, Record: rec, Reserve: reserve, Vault: vault, VaultCreated: created}, nil
}

// WithdrawToken returns the whole live vault balance to the depositor once
// the unlock time has passed, then closes the lock record. The vault stays,
// empty, for reuse by a later lock. The custody address authorises the
// transfer with a seed signer.
//
// destination is the depositor's holding account to credit; zero selects
// (and if needed creates) the depositor's associated holding account.
func (p *Program) WithdrawToken(c *ledger.Context, depositor ledger.Signer, lock, destination ir.Pubkey) (Release, error) {
	rec, err := p.loadForUpdate(c, depositor, lock, KindToken)
	if err != nil {
		return Release{}, err
	}
	if _, err := transition(c.Ctx(), rec.Kind, stateName(&rec), EventWithdraw); err != nil {
		return Release{}, withLock(err, lock)
	}
	if err := checkUnlocked(lock, rec, c.Now()); err != nil {
		return Release{}, err
	}
	vault, balance, err := vaultBalance(c, lock, rec.Mint)
	if err != nil {
		return Release{}, err
	}
	if err := checkVaultBalance(lock, balance); err != nil {
		return Release{}, err
	}

	if destination.IsZero() {
		destination, _, err = c.EnsureAssociatedHoldingAccount(depositor, rec.Depositor, rec.Mint)
		if err != nil {
			return Release{}, err
		}
	}
	dest, err := p.depositorHolding(c, lock, rec.Depositor, rec.Mint, destination)
	if err != nil {
		return Release{}, err
	}

	custody, err := derive.NewSeedSigner(p.id, derive.LockSeeds(TagToken, rec.Depositor), rec.Nonce)
	if err != nil {
		return Release{}, newError(ErrCodeAuthorizationFailure, lock, err.Error())
	}
	if err := c.TokenTransfer(custody, vault, dest.Address, balance); err != nil {
		return Release{}, err
	}
	reclaimed, err := c.CloseAccount(p.id, lock, rec.Depositor)
	if err != nil {
		return Release{}, err
	}

	p.logger.InfoContext(c.Ctx(), "token lock withdrawn",
		"lock", lock.String(),
		"vault", vault.String(),
		"released", balance,
		"reclaimed", reclaimed,
		"now", c.Now(),
	)
	return Release{
		Lock:        lock,
		Kind:        KindToken,
		Released:    balance,
		Reclaimed:   reclaimed,
		Destination: dest.Address,
	}, nil
}

// depositorHolding resolves a holding account of owner for mint. Zero addr
// selects the associated account. The account must be controlled by owner
// and hold mint.
func (p *Program) depositorHolding(c *ledger.Context, lock, owner, mint, addr ir.Pubkey) (store.TokenAccount, error) {
	if addr.IsZero() {
		var err error
		if addr, _, err = derive.AssociatedHoldingAddress(owner, mint); err != nil {
			return store.TokenAccount{}, err
		}
	}
	holding, err := c.HoldingAccount(addr)
	if err != nil {
		return store.TokenAccount{}, err
	}
	if holding.Owner != owner || holding.Mint != mint {
		return store.TokenAccount{}, newError(ErrCodeHoldingAccountMismatch, lock, "").
			with("holding", addr.String()).
			with("owner", holding.Owner.String()).
			with("mint", holding.Mint.String())
	}
	return holding, nil
}
