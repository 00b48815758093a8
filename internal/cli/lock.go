package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/timelock"
)

// LockOptions holds flags for the lock commands.
type LockOptions struct {
	SignedOptions
	Unlock string
	Fund   bool
	Source string
}

// NewLockCommand creates the lock command group.
func NewLockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Create and fund time locks",
	}
	cmd.AddCommand(newLockNativeCommand(rootOpts))
	cmd.AddCommand(newLockFundCommand(rootOpts))
	cmd.AddCommand(newLockTokenCommand(rootOpts))
	return cmd
}

func newLockNativeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LockOptions{SignedOptions: SignedOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "native <amount>",
		Short: "Register a native lock, optionally funding it",
		Long: `Register a native lock for the signer. The principal is moved by
"lock fund", or in the same flow with --fund.

--unlock accepts unix seconds, an RFC 3339 time, or a duration from now
such as +24h.

Examples:
  timelock lock native 1000000 --unlock +24h -k alice.key --fund
  timelock lock native 1000000 --unlock 2030-01-01T00:00:00Z -k alice.key`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			unlock, err := parseUnlock(opts.Unlock, opts.now())
			if err != nil {
				return err
			}
			kp, err := LoadKeypair(opts.Keypair)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load signer", err)
			}

			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				flow := e.engine.NewFlow()
				out, err := execute(ctx, e, kp, timelock.ActionInitializeLockNative, ir.IRObject{
					"amount":      ir.IRInt(amount),
					"unlock_time": ir.IRInt(unlock),
				}, flow)
				if err != nil {
					return err
				}
				if !opts.Fund || !out.Succeeded() {
					return report(e.out, out)
				}

				out, err = execute(ctx, e, kp, timelock.ActionFundNativeLock, ir.IRObject{
					"amount": ir.IRInt(amount),
					"lock":   out.Completion.Result["lock"],
				}, flow)
				if err != nil {
					return err
				}
				return report(e.out, out)
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Unlock, "unlock", "", "unlock time (required)")
	_ = cmd.MarkFlagRequired("unlock")
	cmd.Flags().BoolVar(&opts.Fund, "fund", false, "fund the lock in the same flow")
	return cmd
}

func newLockFundCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "fund <amount>",
		Short:         "Fund the signer's registered native lock",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return signedLockInstruction(opts, cmd, timelock.KindNative, timelock.ActionFundNativeLock, ir.IRObject{
				"amount": ir.IRInt(amount),
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

func newLockTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LockOptions{SignedOptions: SignedOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "token <mint> <amount>",
		Short: "Lock tokens from the signer's holding account",
		Long: `Create a token lock for the signer and move amount tokens into its vault.
The source defaults to the signer's associated holding account.

Example:
  timelock lock token <mint> 500 --unlock +1h -k alice.key`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := resolveAddress(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid mint", err)
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			unlock, err := parseUnlock(opts.Unlock, opts.now())
			if err != nil {
				return err
			}
			instr := ir.IRObject{
				"amount":      ir.IRInt(amount),
				"unlock_time": ir.IRInt(unlock),
				"mint":        ir.IRString(mint.String()),
			}
			if opts.Source != "" {
				src, err := resolveAddress(opts.Source)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --source", err)
				}
				instr["source"] = ir.IRString(src.String())
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return submit(ctx, e, opts.Keypair, timelock.ActionInitializeLockToken, instr)
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Unlock, "unlock", "", "unlock time (required)")
	_ = cmd.MarkFlagRequired("unlock")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source holding account")
	return cmd
}

// WithdrawOptions holds flags for the withdraw and cancel commands.
type WithdrawOptions struct {
	SignedOptions
	Lock        string
	Destination string
}

// NewWithdrawCommand creates the withdraw command group.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw an expired lock",
	}

	native := &WithdrawOptions{SignedOptions: SignedOptions{RootOptions: rootOpts}}
	nativeCmd := &cobra.Command{
		Use:           "native",
		Short:         "Close the signer's expired native lock and return its balance",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withdraw(native, cmd, timelock.KindNative, timelock.ActionWithdrawNative, ir.IRObject{})
		},
	}
	native.bind(nativeCmd)
	nativeCmd.Flags().StringVar(&native.Lock, "lock", "", "lock address (default: derived from the signer)")

	token := &WithdrawOptions{SignedOptions: SignedOptions{RootOptions: rootOpts}}
	tokenCmd := &cobra.Command{
		Use:           "token",
		Short:         "Return the vault of the signer's expired token lock",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := ir.IRObject{}
			if token.Destination != "" {
				dest, err := resolveAddress(token.Destination)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --destination", err)
				}
				extra["destination"] = ir.IRString(dest.String())
			}
			return withdraw(token, cmd, timelock.KindToken, timelock.ActionWithdrawToken, extra)
		},
	}
	token.bind(tokenCmd)
	tokenCmd.Flags().StringVar(&token.Lock, "lock", "", "lock address (default: derived from the signer)")
	tokenCmd.Flags().StringVar(&token.Destination, "destination", "", "holding account to receive the tokens")

	cmd.AddCommand(nativeCmd, tokenCmd)
	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WithdrawOptions{SignedOptions: SignedOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:           "cancel",
		Short:         "Close the signer's unfunded native registration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withdraw(opts, cmd, timelock.KindNative, timelock.ActionCancelNativeRegistration, ir.IRObject{})
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Lock, "lock", "", "lock address (default: derived from the signer)")
	return cmd
}

func withdraw(opts *WithdrawOptions, cmd *cobra.Command, kind timelock.AssetKind, action ir.ActionRef, args ir.IRObject) error {
	if opts.Lock == "" {
		return signedLockInstruction(&opts.SignedOptions, cmd, kind, action, args)
	}
	lock, err := ir.ParsePubkey(opts.Lock)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --lock", err)
	}
	args["lock"] = ir.IRString(lock.String())
	return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
		return submit(ctx, e, opts.Keypair, action, args)
	})
}

// signedLockInstruction submits action against the signer's own lock of kind.
func signedLockInstruction(opts *SignedOptions, cmd *cobra.Command, kind timelock.AssetKind, action ir.ActionRef, args ir.IRObject) error {
	kp, err := LoadKeypair(opts.Keypair)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load signer", err)
	}
	return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
		lock, _, err := e.program.DeriveLockAddress(kp.Public, kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to derive lock address", err)
		}
		args["lock"] = ir.IRString(lock.String())
		out, err := execute(ctx, e, kp, action, args, "")
		if err != nil {
			return err
		}
		return report(e.out, out)
	})
}

// KindOptions holds flags for the read-only lock commands.
type KindOptions struct {
	*RootOptions
	Kind string
	Mint string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <depositor>",
		Short: "Show a depositor's live lock",
		Long: `Load and verify a depositor's lock and print its record and custody
balance.

Example:
  timelock show alice.key --kind token`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			depositor, err := resolveAddress(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid depositor", err)
			}
			kind, err := timelock.ParseAssetKind(opts.Kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --kind", err)
			}
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				var info timelock.LockInfo
				err := e.runtime.View(ctx, func(c *ledger.Context) error {
					var lerr error
					info, lerr = e.program.GetLock(c, depositor, kind)
					return lerr
				})
				if code, ok := timelock.CodeOf(err); ok {
					if ferr := e.out.Error(string(code), err.Error(), nil); ferr != nil {
						return ferr
					}
					return WrapExitError(ExitFailure, string(code), err)
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read lock", err)
				}
				return e.out.Success(info.Result())
			})
		},
	}
	cmd.Flags().StringVar(&opts.Kind, "kind", "native", "asset kind (native|token)")
	return cmd
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive <depositor>",
		Short: "Derive a lock's custody address",
		Long: `Print the custody address and nonce of a depositor's lock. With --mint,
also print the vault holding account for that mint.

Example:
  timelock derive alice.key --kind token --mint <mint>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			depositor, err := resolveAddress(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid depositor", err)
			}
			kind, err := timelock.ParseAssetKind(opts.Kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --kind", err)
			}

			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			programID, err := cfg.ProgramID()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}

			lock, nonce, err := derive.LockAddress(programID, kind.Tag(), depositor)
			if err != nil {
				return WrapExitError(ExitCommandError, "derivation failed", err)
			}
			result := ir.IRObject{
				"program": ir.IRString(programID.String()),
				"kind":    ir.IRString(kind.String()),
				"lock":    ir.IRString(lock.String()),
				"nonce":   ir.IRInt(int64(nonce)),
			}
			if opts.Mint != "" {
				mint, err := resolveAddress(opts.Mint)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --mint", err)
				}
				vault, _, err := derive.AssociatedHoldingAddress(lock, mint)
				if err != nil {
					return WrapExitError(ExitCommandError, "derivation failed", err)
				}
				result["vault"] = ir.IRString(vault.String())
			}
			return opts.formatter(cmd).Success(result)
		},
	}
	cmd.Flags().StringVar(&opts.Kind, "kind", "native", "asset kind (native|token)")
	cmd.Flags().StringVar(&opts.Mint, "mint", "", "token mint, to derive the vault")
	return cmd
}

// now is the reference for relative unlock times.
func (o *RootOptions) now() int64 {
	if o.oracle != nil {
		return o.oracle.Now()
	}
	return time.Now().Unix()
}

// parseUnlock accepts unix seconds, RFC 3339, or +duration relative to now.
func parseUnlock(s string, now int64) (int64, error) {
	if d, ok := strings.CutPrefix(s, "+"); ok {
		dur, err := time.ParseDuration(d)
		if err != nil {
			return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid --unlock duration %q", s))
		}
		return now + int64(dur/time.Second), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid --unlock %q: want unix seconds, RFC 3339 or +duration", s))
	}
	return t.Unix(), nil
}
