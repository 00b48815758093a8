package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/timelock/internal/ir"
)

// Tx is an open ledger transaction. Obtain one through Store.InTx.
type Tx struct {
	tx *sql.Tx
}

// Account is a native-balance account.
type Account struct {
	Address  ir.Pubkey
	Lamports uint64
	Owner    ir.Pubkey // Owning program
	Data     []byte
}

// Mint is a fungible-token class.
type Mint struct {
	Address   ir.Pubkey
	Decimals  uint8
	Supply    uint64
	Authority ir.Pubkey
}

// TokenAccount is a holding account for one mint and one owner.
// Owner is the account's controlling authority.
type TokenAccount struct {
	Address ir.Pubkey
	Mint    ir.Pubkey
	Owner   ir.Pubkey
	Amount  uint64
}

func toInt64(field string, v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%s %d exceeds storable range", field, v)
	}
	return int64(v), nil
}

// GetAccount loads the account at addr. Returns ErrNotFound if absent.
func (t *Tx) GetAccount(ctx context.Context, addr ir.Pubkey) (Account, error) {
	var (
		acct     Account
		lamports int64
		owner    string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT lamports, owner, data FROM accounts WHERE address = ?
	`, addr.String()).Scan(&lamports, &owner, &acct.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account %s: %w", addr, ErrNotFound)
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account %s: %w", addr, err)
	}

	acct.Address = addr
	acct.Lamports = uint64(lamports)
	if acct.Owner, err = ir.ParsePubkey(owner); err != nil {
		return Account{}, fmt.Errorf("get account %s: %w", addr, err)
	}
	return acct, nil
}

// AccountExists reports whether an account is stored at addr.
func (t *Tx) AccountExists(ctx context.Context, addr ir.Pubkey) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE address = ?`, addr.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("account exists %s: %w", addr, err)
	}
	return n > 0, nil
}

// PutAccount inserts or replaces the account.
func (t *Tx) PutAccount(ctx context.Context, acct Account, seq int64) error {
	lamports, err := toInt64("lamports", acct.Lamports)
	if err != nil {
		return fmt.Errorf("put account %s: %w", acct.Address, err)
	}
	data := acct.Data
	if data == nil {
		data = []byte{}
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, lamports, owner, data, updated_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			lamports = excluded.lamports,
			owner = excluded.owner,
			data = excluded.data,
			updated_seq = excluded.updated_seq
	`, acct.Address.String(), lamports, acct.Owner.String(), data, seq)
	if err != nil {
		return fmt.Errorf("put account %s: %w", acct.Address, err)
	}
	return nil
}

// DeleteAccount removes the account at addr. Deleting a missing account
// returns ErrNotFound.
func (t *Tx) DeleteAccount(ctx context.Context, addr ir.Pubkey) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM accounts WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("delete account %s: %w", addr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account %s: %w", addr, err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", addr, ErrNotFound)
	}
	return nil
}

// GetMint loads a mint. Returns ErrNotFound if absent.
func (t *Tx) GetMint(ctx context.Context, addr ir.Pubkey) (Mint, error) {
	var (
		m         Mint
		decimals  int64
		supply    int64
		authority string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT decimals, supply, mint_authority FROM token_mints WHERE address = ?
	`, addr.String()).Scan(&decimals, &supply, &authority)
	if errors.Is(err, sql.ErrNoRows) {
		return Mint{}, fmt.Errorf("mint %s: %w", addr, ErrNotFound)
	}
	if err != nil {
		return Mint{}, fmt.Errorf("get mint %s: %w", addr, err)
	}

	m.Address = addr
	m.Decimals = uint8(decimals)
	m.Supply = uint64(supply)
	if m.Authority, err = ir.ParsePubkey(authority); err != nil {
		return Mint{}, fmt.Errorf("get mint %s: %w", addr, err)
	}
	return m, nil
}

// PutMint inserts or replaces a mint.
func (t *Tx) PutMint(ctx context.Context, m Mint) error {
	supply, err := toInt64("supply", m.Supply)
	if err != nil {
		return fmt.Errorf("put mint %s: %w", m.Address, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO token_mints (address, decimals, supply, mint_authority)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			decimals = excluded.decimals,
			supply = excluded.supply,
			mint_authority = excluded.mint_authority
	`, m.Address.String(), int64(m.Decimals), supply, m.Authority.String())
	if err != nil {
		return fmt.Errorf("put mint %s: %w", m.Address, err)
	}
	return nil
}

// GetTokenAccount loads a holding account. Returns ErrNotFound if absent.
func (t *Tx) GetTokenAccount(ctx context.Context, addr ir.Pubkey) (TokenAccount, error) {
	var (
		ta          TokenAccount
		mint, owner string
		amount      int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT mint, owner, amount FROM token_accounts WHERE address = ?
	`, addr.String()).Scan(&mint, &owner, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenAccount{}, fmt.Errorf("token account %s: %w", addr, ErrNotFound)
	}
	if err != nil {
		return TokenAccount{}, fmt.Errorf("get token account %s: %w", addr, err)
	}

	ta.Address = addr
	ta.Amount = uint64(amount)
	if ta.Mint, err = ir.ParsePubkey(mint); err != nil {
		return TokenAccount{}, fmt.Errorf("get token account %s: %w", addr, err)
	}
	if ta.Owner, err = ir.ParsePubkey(owner); err != nil {
		return TokenAccount{}, fmt.Errorf("get token account %s: %w", addr, err)
	}
	return ta, nil
}

// PutTokenAccount inserts or replaces a holding account.
func (t *Tx) PutTokenAccount(ctx context.Context, ta TokenAccount) error {
	amount, err := toInt64("amount", ta.Amount)
	if err != nil {
		return fmt.Errorf("put token account %s: %w", ta.Address, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO token_accounts (address, mint, owner, amount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			mint = excluded.mint,
			owner = excluded.owner,
			amount = excluded.amount
	`, ta.Address.String(), ta.Mint.String(), ta.Owner.String(), amount)
	if err != nil {
		return fmt.Errorf("put token account %s: %w", ta.Address, err)
	}
	return nil
}

// TokenAccountsByOwner lists the holding accounts controlled by owner,
// ordered by address.
func (t *Tx) TokenAccountsByOwner(ctx context.Context, owner ir.Pubkey) ([]TokenAccount, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT address, mint, amount FROM token_accounts
		WHERE owner = ?
		ORDER BY address COLLATE BINARY ASC
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("query token accounts: %w", err)
	}
	defer rows.Close()

	accounts := []TokenAccount{}
	for rows.Next() {
		var (
			addr, mint string
			amount     int64
		)
		if err := rows.Scan(&addr, &mint, &amount); err != nil {
			return nil, fmt.Errorf("scan token account: %w", err)
		}
		ta := TokenAccount{Owner: owner, Amount: uint64(amount)}
		if ta.Address, err = ir.ParsePubkey(addr); err != nil {
			return nil, err
		}
		if ta.Mint, err = ir.ParsePubkey(mint); err != nil {
			return nil, err
		}
		accounts = append(accounts, ta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token accounts: %w", err)
	}
	return accounts, nil
}
