package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

// withEnv opens the ledger for the duration of fn.
func withEnv(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

// SignedOptions holds the signer flag shared by instruction commands.
type SignedOptions struct {
	*RootOptions
	Keypair string
}

func (o *SignedOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Keypair, "keypair", "k", "", "signer keypair file (required)")
	_ = cmd.MarkFlagRequired("keypair")
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "airdrop <to> <lamports>",
		Short: "Credit lamports to an address",
		Long: `Credit lamports to an address on the local ledger.

<to> is a base58 address or a keypair file.

Example:
  timelock airdrop alice.key 100000000 -k alice.key`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := resolveAddress(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid recipient", err)
			}
			lamports, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return submit(ctx, e, opts.Keypair, engine.ActionAirdrop, ir.IRObject{
					"to":       ir.IRString(to.String()),
					"lamports": ir.IRInt(lamports),
				})
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "transfer <to> <lamports>",
		Short:         "Send lamports from the signer",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := resolveAddress(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid recipient", err)
			}
			lamports, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return submit(ctx, e, opts.Keypair, engine.ActionTransfer, ir.IRObject{
					"to":       ir.IRString(to.String()),
					"lamports": ir.IRInt(lamports),
				})
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

// MintOptions holds flags for the mint subcommands.
type MintOptions struct {
	SignedOptions
	Decimals int
	Mint     string
}

// NewMintCommand creates the mint command group.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Create token classes and issue tokens",
	}
	cmd.AddCommand(newMintCreateCommand(rootOpts))
	cmd.AddCommand(newMintToCommand(rootOpts))
	return cmd
}

func newMintCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{SignedOptions: SignedOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a token class with the signer as authority",
		Long: `Create a token class. The signer becomes the mint authority.
Without --mint a fresh address is generated.

Example:
  timelock mint create -k issuer.key --decimals 6`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mint ir.Pubkey
			if opts.Mint != "" {
				pk, err := resolveAddress(opts.Mint)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --mint", err)
				}
				mint = pk
			} else {
				kp, err := GenerateKeypair()
				if err != nil {
					return err
				}
				mint = kp.Public
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return submit(ctx, e, opts.Keypair, engine.ActionCreateMint, ir.IRObject{
					"mint":     ir.IRString(mint.String()),
					"decimals": ir.IRInt(int64(opts.Decimals)),
				})
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&opts.Decimals, "decimals", 0, "display decimals")
	cmd.Flags().StringVar(&opts.Mint, "mint", "", "mint address or keypair file")
	return cmd
}

func newMintToCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "to <mint> <owner> <amount>",
		Short: "Issue tokens into the owner's associated holding account",
		Long: `Issue tokens. The signer must be the mint authority and pays for the
owner's holding account if it does not exist yet.

Example:
  timelock mint to <mint> alice.key 500 -k issuer.key`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, owner, err := resolvePair(args[0], args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return submit(ctx, e, opts.Keypair, engine.ActionMintTo, ir.IRObject{
					"mint":   ir.IRString(mint.String()),
					"owner":  ir.IRString(owner.String()),
					"amount": ir.IRInt(amount),
				})
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage token holding accounts",
	}

	opts := &SignedOptions{RootOptions: rootOpts}
	create := &cobra.Command{
		Use:           "create <mint> <owner>",
		Short:         "Create the owner's associated holding account, paid by the signer",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, owner, err := resolvePair(args[0], args[1])
			if err != nil {
				return err
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return submit(ctx, e, opts.Keypair, engine.ActionCreateHoldingAccount, ir.IRObject{
					"mint":  ir.IRString(mint.String()),
					"owner": ir.IRString(owner.String()),
				})
			})
		},
	}
	opts.bind(create)
	cmd.AddCommand(create)
	return cmd
}

// BalanceOptions holds flags for the balance command.
type BalanceOptions struct {
	*RootOptions
	Mint string
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BalanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show a native balance, or a token balance with --mint",
		Long: `Show the native balance of an address. With --mint, show the amount in
the address's associated holding account for that mint.

Examples:
  timelock balance alice.key
  timelock balance alice.key --mint <mint>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := resolveAddress(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid address", err)
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				result, err := readBalance(ctx, e, addr, opts.Mint)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read balance", err)
				}
				return e.out.Success(result)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Mint, "mint", "", "token mint address")
	return cmd
}

func readBalance(ctx context.Context, e *env, addr ir.Pubkey, mintArg string) (ir.IRObject, error) {
	result := ir.IRObject{"account": ir.IRString(addr.String())}
	err := e.runtime.View(ctx, func(c *ledger.Context) error {
		if mintArg == "" {
			bal, err := c.Balance(addr)
			if err != nil {
				return err
			}
			result["lamports"] = ir.IRInt(int64(bal))

			holdings, err := c.HoldingAccounts(addr)
			if err != nil {
				return err
			}
			list := make(ir.IRArray, 0, len(holdings))
			for _, ta := range holdings {
				list = append(list, ir.IRObject{
					"holding": ir.IRString(ta.Address.String()),
					"mint":    ir.IRString(ta.Mint.String()),
					"amount":  ir.IRInt(int64(ta.Amount)),
				})
			}
			result["holdings"] = list
			return nil
		}

		mint, err := resolveAddress(mintArg)
		if err != nil {
			return err
		}
		holding, _, err := derive.AssociatedHoldingAddress(addr, mint)
		if err != nil {
			return err
		}
		result["mint"] = ir.IRString(mint.String())
		result["holding"] = ir.IRString(holding.String())
		result["amount"] = ir.IRInt(0)

		ta, err := c.HoldingAccount(holding)
		if ledger.IsCode(err, ledger.ErrCodeAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		result["amount"] = ir.IRInt(int64(ta.Amount))
		return nil
	})
	return result, err
}

func resolvePair(mintArg, ownerArg string) (mint, owner ir.Pubkey, err error) {
	if mint, err = resolveAddress(mintArg); err != nil {
		return mint, owner, WrapExitError(ExitCommandError, "invalid mint", err)
	}
	if owner, err = resolveAddress(ownerArg); err != nil {
		return mint, owner, WrapExitError(ExitCommandError, "invalid owner", err)
	}
	return mint, owner, nil
}

// parseAmount parses a non-negative integer argument. Zero is passed
// through so the program can reject it with its own error.
func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", s))
	}
	return n, nil
}
