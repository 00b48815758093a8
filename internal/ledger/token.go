package ledger

import (
	"math"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// CreateMint registers a new token class. The mint address must be unused.
func (c *Context) CreateMint(mint, authority ir.Pubkey, decimals uint8) error {
	if _, err := c.tx.GetMint(c.ctx, mint); err == nil {
		return newError(ErrCodeAccountAlreadyExists, mint, "mint already exists")
	} else if !store.IsNotFound(err) {
		return err
	}
	return c.tx.PutMint(c.ctx, store.Mint{Address: mint, Decimals: decimals, Authority: authority})
}

// Mint loads a token class.
func (c *Context) Mint(mint ir.Pubkey) (store.Mint, error) {
	m, err := c.tx.GetMint(c.ctx, mint)
	if store.IsNotFound(err) {
		return store.Mint{}, newError(ErrCodeAccountNotFound, mint, "mint does not exist")
	}
	return m, err
}

// MintTo issues amount new tokens of mint into a holding account.
// authority must be the mint authority.
func (c *Context) MintTo(authority Signer, mint, dest ir.Pubkey, amount uint64) error {
	m, err := c.Mint(mint)
	if err != nil {
		return err
	}
	if err := requireSigner(authority, m.Authority); err != nil {
		return err
	}
	holding, err := c.HoldingAccount(dest)
	if err != nil {
		return err
	}
	if holding.Mint != mint {
		return newError(ErrCodeMintMismatch, dest, "holding account is for mint %s", holding.Mint)
	}
	if amount > math.MaxInt64-m.Supply || amount > math.MaxInt64-holding.Amount {
		return newError(ErrCodeOverflow, dest, "minting %d overflows", amount)
	}

	m.Supply += amount
	holding.Amount += amount
	if err := c.tx.PutMint(c.ctx, m); err != nil {
		return err
	}
	return c.tx.PutTokenAccount(c.ctx, holding)
}

// HoldingAccount loads a token holding account.
func (c *Context) HoldingAccount(addr ir.Pubkey) (store.TokenAccount, error) {
	ta, err := c.tx.GetTokenAccount(c.ctx, addr)
	if store.IsNotFound(err) {
		return store.TokenAccount{}, newError(ErrCodeAccountNotFound, addr, "holding account does not exist")
	}
	return ta, err
}

// HoldingAccounts lists the holding accounts controlled by owner.
func (c *Context) HoldingAccounts(owner ir.Pubkey) ([]store.TokenAccount, error) {
	return c.tx.TokenAccountsByOwner(c.ctx, owner)
}

// EnsureAssociatedHoldingAccount returns the associated holding account of
// owner for mint, creating it if absent. The payer funds the rent reserve
// of a new account. created reports whether an account was made.
func (c *Context) EnsureAssociatedHoldingAccount(payer Signer, owner, mint ir.Pubkey) (addr ir.Pubkey, created bool, err error) {
	addr, _, err = derive.AssociatedHoldingAddress(owner, mint)
	if err != nil {
		return ir.Pubkey{}, false, err
	}

	existing, err := c.tx.GetTokenAccount(c.ctx, addr)
	if err == nil {
		if existing.Owner != owner || existing.Mint != mint {
			return ir.Pubkey{}, false, newError(ErrCodeOwnerMismatch, addr, "associated address holds a foreign account")
		}
		return addr, false, nil
	}
	if !store.IsNotFound(err) {
		return ir.Pubkey{}, false, err
	}

	if _, err := c.Mint(mint); err != nil {
		return ir.Pubkey{}, false, err
	}

	reserve := c.rent.MinimumBalance(HoldingAccountSize)
	if err := c.Transfer(payer, addr, reserve); err != nil {
		return ir.Pubkey{}, false, err
	}
	acct, err := c.Account(addr)
	if err != nil {
		return ir.Pubkey{}, false, err
	}
	acct.Owner = ir.TokenProgramID
	if err := c.tx.PutAccount(c.ctx, acct, c.seq); err != nil {
		return ir.Pubkey{}, false, err
	}
	if err := c.tx.PutTokenAccount(c.ctx, store.TokenAccount{Address: addr, Mint: mint, Owner: owner}); err != nil {
		return ir.Pubkey{}, false, err
	}

	c.logger.DebugContext(c.ctx, "holding account created",
		"address", addr.String(),
		"owner", owner.String(),
		"mint", mint.String(),
	)
	return addr, true, nil
}

// TokenTransfer moves amount tokens between two holding accounts of the
// same mint. authority must control the source account.
func (c *Context) TokenTransfer(authority Signer, from, to ir.Pubkey, amount uint64) error {
	src, err := c.HoldingAccount(from)
	if err != nil {
		return err
	}
	if authority == nil || authority.SignerKey() != src.Owner {
		return newError(ErrCodeOwnerMismatch, from, "signer does not control holding account")
	}
	dst, err := c.HoldingAccount(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return newError(ErrCodeMintMismatch, to, "source mint %s, destination mint %s", src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return newError(ErrCodeInsufficientFunds, from, "holding %d, need %d", src.Amount, amount)
	}
	if from == to {
		return nil
	}
	if amount > math.MaxInt64-dst.Amount {
		return newError(ErrCodeOverflow, to, "credit of %d overflows", amount)
	}

	src.Amount -= amount
	dst.Amount += amount
	if err := c.tx.PutTokenAccount(c.ctx, src); err != nil {
		return err
	}
	return c.tx.PutTokenAccount(c.ctx, dst)
}
