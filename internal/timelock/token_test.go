package timelock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

func TestInitializeLockToken(t *testing.T) {
	f := newFixture(t)
	holding := f.withTokens(t, 800)
	lamportsBefore := f.balance(t, f.alice.Public)

	reg := f.lockToken(t, f.alice, 500, testStart+10)

	want, _, err := derive.LockAddress(ir.DefaultTimelockProgramID, TagToken, f.alice.Public)
	require.NoError(t, err)
	assert.Equal(t, want, reg.Lock)
	assert.Equal(t, StateFunded, reg.Record.State)
	assert.Equal(t, f.mint, reg.Record.Mint)
	assert.True(t, reg.VaultCreated)

	vault, _, err := derive.AssociatedHoldingAddress(reg.Lock, f.mint)
	require.NoError(t, err)
	assert.Equal(t, vault, reg.Vault)

	assert.Equal(t, uint64(500), f.tokens(t, vault))
	assert.Equal(t, uint64(300), f.tokens(t, holding))
	assert.Equal(t, lamportsBefore-recordReserve-holdingReserve, f.balance(t, f.alice.Public))
}

func TestInitializeLockToken_Guards(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		unlock int64
		code   ErrorCode
	}{
		{"zero amount", 0, testStart + 10, ErrCodeInvalidAmount},
		{"negative amount", -3, testStart + 10, ErrCodeInvalidAmount},
		{"unlock now", 5, testStart, ErrCodeUnlockInPast},
		{"unlock past", 5, testStart - 100, ErrCodeUnlockInPast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			holding := f.withTokens(t, 100)

			err := f.run(func(c *ledger.Context) error {
				_, err := f.prog.InitializeLockToken(c, sign(t, f.alice), TokenLockParams{
					Amount: tt.amount, UnlockTime: tt.unlock, Mint: f.mint,
				})
				return err
			})
			requireCode(t, err, tt.code)

			lock, _, err := f.prog.DeriveLockAddress(f.alice.Public, KindToken)
			require.NoError(t, err)
			assert.False(t, f.exists(t, lock))
			assert.Equal(t, uint64(100), f.tokens(t, holding))
		})
	}
}

func TestInitializeLockToken_InsufficientTokensRollsBack(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 100)

	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.InitializeLockToken(c, sign(t, f.alice), TokenLockParams{
			Amount: 101, UnlockTime: testStart + 10, Mint: f.mint,
		})
		return err
	})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeInsufficientFunds), "got %v", err)

	lock, _, err := f.prog.DeriveLockAddress(f.alice.Public, KindToken)
	require.NoError(t, err)
	assert.False(t, f.exists(t, lock), "record creation must roll back with the failed transfer")
}

func TestInitializeLockToken_ZeroMint(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 100)

	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.InitializeLockToken(c, sign(t, f.alice), TokenLockParams{
			Amount: 1, UnlockTime: testStart + 10,
		})
		return err
	})
	requireCode(t, err, ErrCodeInvalidArgument)

	lock, _, err := f.prog.DeriveLockAddress(f.alice.Public, KindToken)
	require.NoError(t, err)
	assert.False(t, f.exists(t, lock))
}

func TestInitializeLockToken_ForeignSource(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 100)

	var eveHolding ir.Pubkey
	require.NoError(t, f.run(func(c *ledger.Context) error {
		var err error
		eveHolding, _, err = c.EnsureAssociatedHoldingAccount(sign(t, f.eve), f.eve.Public, f.mint)
		return err
	}))

	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.InitializeLockToken(c, sign(t, f.alice), TokenLockParams{
			Amount: 1, UnlockTime: testStart + 10, Mint: f.mint, Source: eveHolding,
		})
		return err
	})
	requireCode(t, err, ErrCodeHoldingAccountMismatch)
}

func TestInitializeLockToken_RejectsRecreation(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 1_000)
	reg := f.lockToken(t, f.alice, 500, testStart+10)

	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.InitializeLockToken(c, sign(t, f.alice), TokenLockParams{
			Amount: 1, UnlockTime: testStart + 1, Mint: f.mint,
		})
		return err
	})
	requireCode(t, err, ErrCodeLockAlreadyExists)
	assert.Equal(t, uint64(500), f.tokens(t, reg.Vault))
}

func TestWithdrawToken(t *testing.T) {
	f := newFixture(t)
	holding := f.withTokens(t, 800)
	reg := f.lockToken(t, f.alice, 500, testStart+10)
	lamportsBefore := f.balance(t, f.alice.Public)

	f.oracle.Set(testStart + 10)
	require.NoError(t, f.run(func(c *ledger.Context) error {
		rel, err := f.prog.WithdrawToken(c, sign(t, f.alice), reg.Lock, ir.Pubkey{})
		require.NoError(t, err)
		assert.Equal(t, uint64(500), rel.Released)
		assert.Equal(t, recordReserve, rel.Reclaimed)
		assert.Equal(t, holding, rel.Destination)
		return nil
	}))

	assert.Equal(t, uint64(0), f.tokens(t, reg.Vault))
	assert.Equal(t, uint64(800), f.tokens(t, holding))
	assert.False(t, f.exists(t, reg.Lock), "record is destroyed on withdrawal")
	assert.True(t, f.exists(t, reg.Vault), "vault remains for reuse")
	assert.Equal(t, lamportsBefore+recordReserve, f.balance(t, f.alice.Public))
}

func TestWithdrawToken_SweepsLiveBalance(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 800)
	reg := f.lockToken(t, f.alice, 500, testStart+10)

	// Extra tokens arrive in the vault after creation.
	require.NoError(t, f.run(func(c *ledger.Context) error {
		return c.MintTo(sign(t, f.issuer), f.mint, reg.Vault, 25)
	}))

	f.oracle.Set(testStart + 11)
	require.NoError(t, f.run(func(c *ledger.Context) error {
		rel, err := f.prog.WithdrawToken(c, sign(t, f.alice), reg.Lock, ir.Pubkey{})
		require.NoError(t, err)
		assert.Equal(t, uint64(525), rel.Released)
		return nil
	}))
}

func TestWithdrawToken_BeforeUnlock(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 800)
	reg := f.lockToken(t, f.alice, 500, testStart+10)

	f.oracle.Set(testStart + 9)
	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.WithdrawToken(c, sign(t, f.alice), reg.Lock, ir.Pubkey{})
		return err
	})
	requireCode(t, err, ErrCodeTimeLockNotExpired)
	assert.Equal(t, uint64(500), f.tokens(t, reg.Vault))
}

func TestWithdrawToken_EmptyVault(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 800)
	reg := f.lockToken(t, f.alice, 500, testStart+10)

	// Drain the vault behind the program's back.
	require.NoError(t, f.run(func(c *ledger.Context) error {
		ta, err := c.HoldingAccount(reg.Vault)
		if err != nil {
			return err
		}
		ta.Amount = 0
		return c.Tx().PutTokenAccount(c.Ctx(), ta)
	}))

	f.oracle.Set(testStart + 20)
	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.WithdrawToken(c, sign(t, f.alice), reg.Lock, ir.Pubkey{})
		return err
	})
	requireCode(t, err, ErrCodeInsufficientVaultBalance)
	assert.True(t, f.exists(t, reg.Lock))
}

func TestWithdrawToken_WrongKind(t *testing.T) {
	f := newFixture(t)
	lock := f.lockNative(t, f.alice, 1_000, testStart+10)

	f.oracle.Set(testStart + 20)
	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.WithdrawToken(c, sign(t, f.alice), lock, ir.Pubkey{})
		return err
	})
	requireCode(t, err, ErrCodeWrongAssetKind)
}

func TestWithdrawToken_ForeignDestination(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 800)
	reg := f.lockToken(t, f.alice, 500, testStart+10)

	var eveHolding ir.Pubkey
	require.NoError(t, f.run(func(c *ledger.Context) error {
		var err error
		eveHolding, _, err = c.EnsureAssociatedHoldingAccount(sign(t, f.eve), f.eve.Public, f.mint)
		return err
	}))

	f.oracle.Set(testStart + 20)
	err := f.run(func(c *ledger.Context) error {
		_, err := f.prog.WithdrawToken(c, sign(t, f.alice), reg.Lock, eveHolding)
		return err
	})
	requireCode(t, err, ErrCodeHoldingAccountMismatch)
}

func TestTokenLock_VaultReusedAfterWithdraw(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 1_000)
	first := f.lockToken(t, f.alice, 400, testStart+10)

	f.oracle.Set(testStart + 10)
	require.NoError(t, f.run(func(c *ledger.Context) error {
		_, err := f.prog.WithdrawToken(c, sign(t, f.alice), first.Lock, ir.Pubkey{})
		return err
	}))

	second := f.lockToken(t, f.alice, 700, testStart+100)
	assert.Equal(t, first.Lock, second.Lock)
	assert.Equal(t, first.Vault, second.Vault)
	assert.False(t, second.VaultCreated)
	assert.Equal(t, uint64(700), f.tokens(t, second.Vault))
}

func TestNativeAndTokenLocksCoexist(t *testing.T) {
	f := newFixture(t)
	f.withTokens(t, 100)

	native := f.lockNative(t, f.alice, 1_000, testStart+10)
	token := f.lockToken(t, f.alice, 100, testStart+10)
	assert.NotEqual(t, native, token.Lock)

	require.NoError(t, f.rt.View(context.Background(), func(c *ledger.Context) error {
		n, err := f.prog.GetLock(c, f.alice.Public, KindNative)
		require.NoError(t, err)
		tk, err := f.prog.GetLock(c, f.alice.Public, KindToken)
		require.NoError(t, err)
		assert.Equal(t, KindNative, n.Record.Kind)
		assert.Equal(t, KindToken, tk.Record.Kind)
		assert.Equal(t, uint64(100), tk.VaultBalance)
		return nil
	}))
}
