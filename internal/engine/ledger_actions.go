package engine

import (
	"fmt"
	"math"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

// Ledger administration actions. These stand in for the host chain's
// faucet, system and token programs.
const (
	ActionAirdrop              ir.ActionRef = "ledger.airdrop"
	ActionTransfer             ir.ActionRef = "ledger.transfer"
	ActionCreateMint           ir.ActionRef = "ledger.create_mint"
	ActionCreateHoldingAccount ir.ActionRef = "ledger.create_holding_account"
	ActionMintTo               ir.ActionRef = "ledger.mint_to"
)

func registerLedgerActions(e *Engine) {
	e.handlers[ActionAirdrop] = airdrop
	e.handlers[ActionTransfer] = transfer
	e.handlers[ActionCreateMint] = createMint
	e.handlers[ActionCreateHoldingAccount] = createHoldingAccount
	e.handlers[ActionMintTo] = mintTo
}

// airdrop: {to, lamports}. Any signer may request it.
func airdrop(c *ledger.Context, _ ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
	to, err := pubkeyArg(ActionAirdrop, args, "to")
	if err != nil {
		return nil, err
	}
	lamports, err := positiveArg(ActionAirdrop, args, "lamports")
	if err != nil {
		return nil, err
	}
	if err := c.Airdrop(to, lamports); err != nil {
		return nil, err
	}
	return balanceResult(c, to)
}

// transfer: {to, lamports} from the signer's system account.
func transfer(c *ledger.Context, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
	to, err := pubkeyArg(ActionTransfer, args, "to")
	if err != nil {
		return nil, err
	}
	lamports, err := positiveArg(ActionTransfer, args, "lamports")
	if err != nil {
		return nil, err
	}
	if err := c.Transfer(signer, to, lamports); err != nil {
		return nil, err
	}
	return balanceResult(c, to)
}

// createMint: {mint, decimals}. The signer becomes the mint authority.
func createMint(c *ledger.Context, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
	mint, err := pubkeyArg(ActionCreateMint, args, "mint")
	if err != nil {
		return nil, err
	}
	decimals, err := args.Int("decimals")
	if err != nil {
		return nil, NewInvalidRequestError(ActionCreateMint, "decimals", err)
	}
	if decimals < 0 || decimals > math.MaxUint8 {
		return nil, NewInvalidRequestError(ActionCreateMint, "decimals", fmt.Errorf("%d out of range", decimals))
	}
	if err := c.CreateMint(mint, signer.SignerKey(), uint8(decimals)); err != nil {
		return nil, err
	}
	return ir.IRObject{
		"mint":      ir.IRString(mint.String()),
		"authority": ir.IRString(signer.SignerKey().String()),
		"decimals":  ir.IRInt(decimals),
	}, nil
}

// createHoldingAccount: {owner, mint}. The signer pays the reserve.
func createHoldingAccount(c *ledger.Context, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
	owner, err := pubkeyArg(ActionCreateHoldingAccount, args, "owner")
	if err != nil {
		return nil, err
	}
	mint, err := pubkeyArg(ActionCreateHoldingAccount, args, "mint")
	if err != nil {
		return nil, err
	}
	addr, created, err := c.EnsureAssociatedHoldingAccount(signer, owner, mint)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{
		"holding": ir.IRString(addr.String()),
		"created": ir.IRBool(created),
	}, nil
}

// mintTo: {mint, owner, amount}. Signed by the mint authority, who also
// pays for the owner's associated holding account if it is missing.
func mintTo(c *ledger.Context, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
	mint, err := pubkeyArg(ActionMintTo, args, "mint")
	if err != nil {
		return nil, err
	}
	owner, err := pubkeyArg(ActionMintTo, args, "owner")
	if err != nil {
		return nil, err
	}
	amount, err := positiveArg(ActionMintTo, args, "amount")
	if err != nil {
		return nil, err
	}
	if _, err := c.Mint(mint); err != nil {
		return nil, err
	}
	holding, _, err := c.EnsureAssociatedHoldingAccount(signer, owner, mint)
	if err != nil {
		return nil, err
	}
	if err := c.MintTo(signer, mint, holding, amount); err != nil {
		return nil, err
	}
	acct, err := c.HoldingAccount(holding)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{
		"holding": ir.IRString(holding.String()),
		"amount":  ir.IRInt(int64(acct.Amount)),
	}, nil
}

func balanceResult(c *ledger.Context, addr ir.Pubkey) (ir.IRObject, error) {
	bal, err := c.Balance(addr)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{
		"account":  ir.IRString(addr.String()),
		"lamports": ir.IRInt(int64(bal)),
	}, nil
}

func pubkeyArg(action ir.ActionRef, args ir.IRObject, key string) (ir.Pubkey, error) {
	v, err := args.Pubkey(key)
	if err != nil {
		return ir.Pubkey{}, NewInvalidRequestError(action, key, err)
	}
	return v, nil
}

func positiveArg(action ir.ActionRef, args ir.IRObject, key string) (uint64, error) {
	v, err := args.Int(key)
	if err != nil {
		return 0, NewInvalidRequestError(action, key, err)
	}
	if v <= 0 {
		return 0, NewInvalidRequestError(action, key, fmt.Errorf("must be positive, got %d", v))
	}
	return uint64(v), nil
}
