package timelock

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
	"github.com/roach88/timelock/internal/testutil"
)

const testStart = int64(1_700_000_000)

var (
	recordReserve  = ledger.DefaultRent().MinimumBalance(RecordSize)
	holdingReserve = ledger.DefaultRent().MinimumBalance(ledger.HoldingAccountSize)
)

type fixture struct {
	rt     *ledger.Runtime
	oracle *testutil.ManualOracle
	prog   *Program
	seq    int64

	alice  testutil.Keypair
	eve    testutil.Keypair
	issuer testutil.Keypair
	mint   ir.Pubkey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	oracle := testutil.NewManualOracle(testStart)
	f := &fixture{
		rt:     ledger.NewRuntime(st, oracle, ledger.WithLogger(logger)),
		oracle: oracle,
		prog:   NewProgram(ir.DefaultTimelockProgramID, logger),
		alice:  testutil.NewKeypair("alice"),
		eve:    testutil.NewKeypair("eve"),
		issuer: testutil.NewKeypair("issuer"),
		mint:   testutil.Address("mint-m"),
	}

	require.NoError(t, f.run(func(c *ledger.Context) error {
		if err := c.Airdrop(f.alice.Public, 100_000_000); err != nil {
			return err
		}
		return c.Airdrop(f.eve.Public, 100_000_000)
	}))
	return f
}

// withTokens creates the mint and gives alice amount tokens in her
// associated holding account.
func (f *fixture) withTokens(t *testing.T, amount uint64) ir.Pubkey {
	t.Helper()
	var holding ir.Pubkey
	require.NoError(t, f.run(func(c *ledger.Context) error {
		if err := c.CreateMint(f.mint, f.issuer.Public, 0); err != nil {
			return err
		}
		var err error
		holding, _, err = c.EnsureAssociatedHoldingAccount(sign(t, f.alice), f.alice.Public, f.mint)
		if err != nil {
			return err
		}
		return c.MintTo(sign(t, f.issuer), f.mint, holding, amount)
	}))
	return holding
}

func (f *fixture) run(fn func(c *ledger.Context) error) error {
	f.seq++
	return f.rt.Transact(context.Background(), f.seq, fn)
}

func (f *fixture) balance(t *testing.T, addr ir.Pubkey) uint64 {
	t.Helper()
	var b uint64
	require.NoError(t, f.rt.View(context.Background(), func(c *ledger.Context) error {
		var err error
		b, err = c.Balance(addr)
		return err
	}))
	return b
}

func (f *fixture) tokens(t *testing.T, holding ir.Pubkey) uint64 {
	t.Helper()
	var amount uint64
	require.NoError(t, f.rt.View(context.Background(), func(c *ledger.Context) error {
		ta, err := c.HoldingAccount(holding)
		if err != nil {
			return err
		}
		amount = ta.Amount
		return nil
	}))
	return amount
}

func (f *fixture) exists(t *testing.T, addr ir.Pubkey) bool {
	t.Helper()
	var ok bool
	require.NoError(t, f.rt.View(context.Background(), func(c *ledger.Context) error {
		var err error
		ok, err = c.AccountExists(addr)
		return err
	}))
	return ok
}

func (f *fixture) registerNative(t *testing.T, k testutil.Keypair, amount, unlock int64) ir.Pubkey {
	t.Helper()
	var lock ir.Pubkey
	require.NoError(t, f.run(func(c *ledger.Context) error {
		reg, err := f.prog.InitializeLockNative(c, sign(t, k), amount, unlock)
		lock = reg.Lock
		return err
	}))
	return lock
}

func (f *fixture) lockNative(t *testing.T, k testutil.Keypair, amount, unlock int64) ir.Pubkey {
	t.Helper()
	var lock ir.Pubkey
	// Register and fund in one transaction, as a client would send them.
	require.NoError(t, f.run(func(c *ledger.Context) error {
		reg, err := f.prog.InitializeLockNative(c, sign(t, k), amount, unlock)
		if err != nil {
			return err
		}
		lock = reg.Lock
		_, err = f.prog.FundNativeLock(c, sign(t, k), lock, amount)
		return err
	}))
	return lock
}

func (f *fixture) lockToken(t *testing.T, k testutil.Keypair, amount, unlock int64) Registration {
	t.Helper()
	var reg Registration
	require.NoError(t, f.run(func(c *ledger.Context) error {
		var err error
		reg, err = f.prog.InitializeLockToken(c, sign(t, k), TokenLockParams{Amount: amount, UnlockTime: unlock, Mint: f.mint})
		return err
	}))
	return reg
}

// sign returns a verified signer for k.
func sign(t *testing.T, k testutil.Keypair) ledger.KeySigner {
	t.Helper()
	msg := []byte("timelock test")
	s, err := ledger.VerifyKeySigner(k.Public, msg, k.Sign(msg))
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsCode(err, code), "want %s, got %v", code, err)
}
