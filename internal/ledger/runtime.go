package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// Runtime executes ledger transactions against a store.
type Runtime struct {
	store  *store.Store
	oracle Oracle
	rent   Rent
	logger *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRent overrides the rent parameters.
func WithRent(r Rent) Option {
	return func(rt *Runtime) { rt.rent = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// NewRuntime creates a runtime over st, reading time from oracle.
func NewRuntime(st *store.Store, oracle Oracle, opts ...Option) *Runtime {
	rt := &Runtime{
		store:  st,
		oracle: oracle,
		rent:   DefaultRent(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Store returns the underlying store.
func (rt *Runtime) Store() *store.Store {
	return rt.store
}

// Rent returns the rent parameters in force.
func (rt *Runtime) Rent() Rent {
	return rt.rent
}

// Transact runs fn in one store transaction. seq is the logical sequence
// number stamped on every account written. The oracle is read once, before
// fn runs. If fn fails, every write is discarded.
func (rt *Runtime) Transact(ctx context.Context, seq int64, fn func(*Context) error) error {
	now := rt.oracle.Now()
	return rt.store.InTx(ctx, func(tx *store.Tx) error {
		return fn(&Context{ctx: ctx, tx: tx, now: now, seq: seq, rent: rt.rent, logger: rt.logger})
	})
}

var errViewDone = errors.New("view done")

// View runs fn in a transaction that is always rolled back.
func (rt *Runtime) View(ctx context.Context, fn func(*Context) error) error {
	err := rt.Transact(ctx, 0, func(c *Context) error {
		if err := fn(c); err != nil {
			return err
		}
		return errViewDone
	})
	if errors.Is(err, errViewDone) {
		return nil
	}
	return err
}

// Context is the view of the ledger inside one transaction.
type Context struct {
	ctx    context.Context
	tx     *store.Tx
	now    int64
	seq    int64
	rent   Rent
	logger *slog.Logger
}

// Ctx returns the request context.
func (c *Context) Ctx() context.Context { return c.ctx }

// Tx returns the store transaction, for callers that log alongside ledger writes.
func (c *Context) Tx() *store.Tx { return c.tx }

// Now returns the oracle time read when the transaction began.
func (c *Context) Now() int64 { return c.now }

// Seq returns the sequence number of the transaction.
func (c *Context) Seq() int64 { return c.seq }

// Rent returns the rent parameters.
func (c *Context) Rent() Rent { return c.rent }

// Account loads the account at addr.
func (c *Context) Account(addr ir.Pubkey) (store.Account, error) {
	acct, err := c.tx.GetAccount(c.ctx, addr)
	if store.IsNotFound(err) {
		return store.Account{}, newError(ErrCodeAccountNotFound, addr, "account does not exist")
	}
	return acct, err
}

// AccountExists reports whether an account exists at addr.
func (c *Context) AccountExists(addr ir.Pubkey) (bool, error) {
	return c.tx.AccountExists(c.ctx, addr)
}

// Balance returns the native balance at addr, zero if no account exists.
func (c *Context) Balance(addr ir.Pubkey) (uint64, error) {
	acct, err := c.tx.GetAccount(c.ctx, addr)
	if store.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// Airdrop credits lamports to addr, creating a system account if needed.
func (c *Context) Airdrop(addr ir.Pubkey, lamports uint64) error {
	return c.credit(addr, lamports)
}

// Transfer moves lamports from a system-owned account to any account.
func (c *Context) Transfer(from Signer, to ir.Pubkey, lamports uint64) error {
	src, err := c.Account(from.SignerKey())
	if err != nil {
		return err
	}
	if err := requireSigner(from, src.Address); err != nil {
		return err
	}
	if src.Owner != ir.SystemProgramID {
		return newError(ErrCodeOwnerMismatch, src.Address, "transfer source must be a system account, owner is %s", src.Owner)
	}
	if err := c.debit(&src, lamports); err != nil {
		return err
	}
	if err := c.tx.PutAccount(c.ctx, src, c.seq); err != nil {
		return err
	}
	return c.credit(to, lamports)
}

// CreateAccount allocates a rent-exempt account at the signer's address,
// owned by program and holding data. The payer funds the reserve and
// returns the amount paid.
//
// An address that already received a plain transfer (a system account
// with no data) is adopted: the payer only tops it up to the reserve.
// Any other existing account is AccountAlreadyExists.
func (c *Context) CreateAccount(payer, account Signer, program ir.Pubkey, data []byte) (uint64, error) {
	addr := account.SignerKey()
	if err := requireSigner(account, addr); err != nil {
		return 0, err
	}

	var existing uint64
	acct, err := c.tx.GetAccount(c.ctx, addr)
	switch {
	case err == nil:
		if acct.Owner != ir.SystemProgramID || len(acct.Data) > 0 {
			return 0, newError(ErrCodeAccountAlreadyExists, addr, "address already in use")
		}
		existing = acct.Lamports
	case !store.IsNotFound(err):
		return 0, err
	}

	reserve := c.rent.MinimumBalance(len(data))
	var paid uint64
	if reserve > existing {
		paid = reserve - existing
		if err := c.Transfer(payer, addr, paid); err != nil {
			return 0, err
		}
	}

	acct, err = c.tx.GetAccount(c.ctx, addr)
	if store.IsNotFound(err) {
		acct = store.Account{Address: addr}
	} else if err != nil {
		return 0, err
	}
	acct.Owner = program
	acct.Data = append([]byte(nil), data...)
	if err := c.tx.PutAccount(c.ctx, acct, c.seq); err != nil {
		return 0, err
	}

	c.logger.DebugContext(c.ctx, "account created",
		"address", addr.String(),
		"owner", program.String(),
		"paid", paid,
	)
	return paid, nil
}

// SetData replaces the data of an account owned by program.
func (c *Context) SetData(program, addr ir.Pubkey, data []byte) error {
	acct, err := c.Account(addr)
	if err != nil {
		return err
	}
	if acct.Owner != program {
		return newError(ErrCodeOwnerMismatch, addr, "account is owned by %s", acct.Owner)
	}
	acct.Data = append([]byte(nil), data...)
	return c.tx.PutAccount(c.ctx, acct, c.seq)
}

// CloseAccount deletes an account owned by program and moves its whole
// balance to dest. It returns the amount moved.
func (c *Context) CloseAccount(program, addr, dest ir.Pubkey) (uint64, error) {
	acct, err := c.Account(addr)
	if err != nil {
		return 0, err
	}
	if acct.Owner != program {
		return 0, newError(ErrCodeOwnerMismatch, addr, "account is owned by %s", acct.Owner)
	}
	if addr == dest {
		return 0, newError(ErrCodeOwnerMismatch, addr, "cannot close an account into itself")
	}
	if err := c.tx.DeleteAccount(c.ctx, addr); err != nil {
		return 0, err
	}
	if err := c.credit(dest, acct.Lamports); err != nil {
		return 0, err
	}

	c.logger.DebugContext(c.ctx, "account closed",
		"address", addr.String(),
		"dest", dest.String(),
		"lamports", acct.Lamports,
	)
	return acct.Lamports, nil
}

func (c *Context) debit(acct *store.Account, lamports uint64) error {
	if acct.Lamports < lamports {
		return newError(ErrCodeInsufficientFunds, acct.Address, "balance %d, need %d", acct.Lamports, lamports)
	}
	acct.Lamports -= lamports
	return nil
}

func (c *Context) credit(addr ir.Pubkey, lamports uint64) error {
	acct, err := c.tx.GetAccount(c.ctx, addr)
	if store.IsNotFound(err) {
		acct = store.Account{Address: addr, Owner: ir.SystemProgramID}
	} else if err != nil {
		return err
	}
	if lamports > math.MaxInt64-acct.Lamports {
		return newError(ErrCodeOverflow, addr, "credit of %d overflows balance %d", lamports, acct.Lamports)
	}
	acct.Lamports += lamports
	if err := c.tx.PutAccount(c.ctx, acct, c.seq); err != nil {
		return fmt.Errorf("credit %s: %w", addr, err)
	}
	return nil
}
