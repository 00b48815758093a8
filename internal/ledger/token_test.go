package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/testutil"
)

type tokenFixture struct {
	rt      *Runtime
	issuer  testutil.Keypair
	alice   testutil.Keypair
	bob     testutil.Keypair
	mint    ir.Pubkey
	aliceTA ir.Pubkey
	bobTA   ir.Pubkey
}

func newTokenFixture(t *testing.T) tokenFixture {
	t.Helper()
	rt, _ := newTestRuntime(t)
	f := tokenFixture{
		rt:     rt,
		issuer: testutil.NewKeypair("issuer"),
		alice:  testutil.NewKeypair("alice"),
		bob:    testutil.NewKeypair("bob"),
		mint:   testutil.Address("usdc"),
	}

	require.NoError(t, transact(t, rt, func(c *Context) error {
		require.NoError(t, c.Airdrop(f.alice.Public, 10_000_000))
		require.NoError(t, c.Airdrop(f.bob.Public, 10_000_000))
		require.NoError(t, c.CreateMint(f.mint, f.issuer.Public, 6))

		var err error
		f.aliceTA, _, err = c.EnsureAssociatedHoldingAccount(signerFor(f.alice), f.alice.Public, f.mint)
		require.NoError(t, err)
		f.bobTA, _, err = c.EnsureAssociatedHoldingAccount(signerFor(f.bob), f.bob.Public, f.mint)
		require.NoError(t, err)
		return c.MintTo(signerFor(f.issuer), f.mint, f.aliceTA, 1_000)
	}))
	return f
}

func TestAssociatedHoldingAccount_DerivedAndIdempotent(t *testing.T) {
	f := newTokenFixture(t)

	want, _, err := derive.AssociatedHoldingAddress(f.alice.Public, f.mint)
	require.NoError(t, err)
	assert.Equal(t, want, f.aliceTA)

	reserve := DefaultRent().MinimumBalance(HoldingAccountSize)
	assert.Equal(t, 10_000_000-reserve, balance(t, f.rt, f.alice.Public))
	assert.Equal(t, reserve, balance(t, f.rt, f.aliceTA))

	require.NoError(t, transact(t, f.rt, func(c *Context) error {
		addr, created, err := c.EnsureAssociatedHoldingAccount(signerFor(f.alice), f.alice.Public, f.mint)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, f.aliceTA, addr)

		acct, err := c.Account(addr)
		require.NoError(t, err)
		assert.Equal(t, ir.TokenProgramID, acct.Owner)
		return nil
	}))
}

func TestAssociatedHoldingAccount_UnknownMint(t *testing.T) {
	f := newTokenFixture(t)
	err := transact(t, f.rt, func(c *Context) error {
		_, _, err := c.EnsureAssociatedHoldingAccount(signerFor(f.alice), f.alice.Public, testutil.Address("ghost"))
		return err
	})
	assert.True(t, IsCode(err, ErrCodeAccountNotFound))
}

func TestMintTo_RequiresAuthority(t *testing.T) {
	f := newTokenFixture(t)
	err := transact(t, f.rt, func(c *Context) error {
		return c.MintTo(signerFor(f.alice), f.mint, f.aliceTA, 1)
	})
	assert.True(t, IsCode(err, ErrCodeMissingSignature))

	require.NoError(t, f.rt.View(context.Background(), func(c *Context) error {
		m, err := c.Mint(f.mint)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000), m.Supply)
		return nil
	}))
}

func TestCreateMint_Duplicate(t *testing.T) {
	f := newTokenFixture(t)
	err := transact(t, f.rt, func(c *Context) error {
		return c.CreateMint(f.mint, f.issuer.Public, 0)
	})
	assert.True(t, IsCode(err, ErrCodeAccountAlreadyExists))
}

func TestTokenTransfer(t *testing.T) {
	f := newTokenFixture(t)

	require.NoError(t, transact(t, f.rt, func(c *Context) error {
		return c.TokenTransfer(signerFor(f.alice), f.aliceTA, f.bobTA, 300)
	}))

	require.NoError(t, f.rt.View(context.Background(), func(c *Context) error {
		a, err := c.HoldingAccount(f.aliceTA)
		require.NoError(t, err)
		b, err := c.HoldingAccount(f.bobTA)
		require.NoError(t, err)
		assert.Equal(t, uint64(700), a.Amount)
		assert.Equal(t, uint64(300), b.Amount)
		return nil
	}))
}

func TestTokenTransfer_Failures(t *testing.T) {
	f := newTokenFixture(t)
	other := testutil.Address("other-mint")

	var otherTA ir.Pubkey
	require.NoError(t, transact(t, f.rt, func(c *Context) error {
		require.NoError(t, c.CreateMint(other, f.issuer.Public, 0))
		var err error
		otherTA, _, err = c.EnsureAssociatedHoldingAccount(signerFor(f.bob), f.bob.Public, other)
		return err
	}))

	tests := []struct {
		name string
		fn   func(c *Context) error
		code ErrorCode
	}{
		{
			name: "wrong authority",
			fn:   func(c *Context) error { return c.TokenTransfer(signerFor(f.bob), f.aliceTA, f.bobTA, 1) },
			code: ErrCodeOwnerMismatch,
		},
		{
			name: "insufficient",
			fn:   func(c *Context) error { return c.TokenTransfer(signerFor(f.alice), f.aliceTA, f.bobTA, 1_001) },
			code: ErrCodeInsufficientFunds,
		},
		{
			name: "mint mismatch",
			fn:   func(c *Context) error { return c.TokenTransfer(signerFor(f.alice), f.aliceTA, otherTA, 1) },
			code: ErrCodeMintMismatch,
		},
		{
			name: "missing destination",
			fn: func(c *Context) error {
				return c.TokenTransfer(signerFor(f.alice), f.aliceTA, testutil.Address("nowhere"), 1)
			},
			code: ErrCodeAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := transact(t, f.rt, tt.fn)
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTokenTransfer_SeedSignerAuthority(t *testing.T) {
	f := newTokenFixture(t)
	programID := ir.MustParsePubkey(program)
	seeds := derive.LockSeeds("time-lock-spl", f.alice.Public)
	custody, nonce, err := derive.FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	pda, err := derive.NewSeedSigner(programID, seeds, nonce)
	require.NoError(t, err)

	var vault ir.Pubkey
	require.NoError(t, transact(t, f.rt, func(c *Context) error {
		vault, _, err = c.EnsureAssociatedHoldingAccount(signerFor(f.alice), custody, f.mint)
		require.NoError(t, err)
		require.NoError(t, c.TokenTransfer(signerFor(f.alice), f.aliceTA, vault, 250))
		return c.TokenTransfer(pda, vault, f.aliceTA, 250)
	}))

	require.NoError(t, f.rt.View(context.Background(), func(c *Context) error {
		v, err := c.HoldingAccount(vault)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), v.Amount)
		return nil
	}))
}
