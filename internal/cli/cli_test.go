package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/testutil"
)

const testStart = 1_700_000_000

// cliFixture runs commands against one database with a manual clock.
type cliFixture struct {
	t      *testing.T
	dir    string
	db     string
	oracle *testutil.ManualOracle
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	return &cliFixture{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "ledger.db"),
		oracle: testutil.NewManualOracle(testStart),
	}
}

// run executes the CLI and returns stdout.
func (f *cliFixture) run(args ...string) (string, error) {
	f.t.Helper()
	cmd := newRootCommand(&RootOptions{oracle: f.oracle})
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append(args, "--db", f.db))
	err := cmd.Execute()
	return out.String(), err
}

// data runs a command with --format json and returns the response data.
func (f *cliFixture) data(args ...string) map[string]any {
	f.t.Helper()
	out, err := f.run(append(args, "--format", "json")...)
	require.NoError(f.t, err, out)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(f.t, "ok", resp.Status)
	return resp.Data
}

// rejected runs a command expected to be recorded as a failure and
// returns its error code.
func (f *cliFixture) rejected(args ...string) string {
	f.t.Helper()
	out, err := f.run(append(args, "--format", "json")...)
	require.Error(f.t, err)
	require.Equal(f.t, ExitFailure, GetExitCode(err), err.Error())

	var resp CLIResponse
	require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(f.t, "error", resp.Status)
	return resp.Error.Code
}

func (f *cliFixture) key(name string) string {
	f.t.Helper()
	path := filepath.Join(f.dir, name+".key")
	_, err := f.run("keygen", path)
	require.NoError(f.t, err)
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "timelock", cmd.Use)

	for _, path := range [][]string{
		{"keygen"}, {"airdrop"}, {"transfer"}, {"mint", "create"}, {"mint", "to"},
		{"account", "create"}, {"balance"}, {"lock", "native"}, {"lock", "fund"},
		{"lock", "token"}, {"withdraw", "native"}, {"withdraw", "token"},
		{"cancel"}, {"show"}, {"derive"}, {"trace"}, {"test"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
}

func TestInvalidFormat(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run("derive", testutil.Address("x").String(), "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestNativeLockFlow(t *testing.T) {
	f := newCLIFixture(t)
	alice := f.key("alice")

	got := f.data("airdrop", alice, "100000000", "-k", alice)
	assert.Equal(t, float64(100000000), got["lamports"])

	got = f.data("lock", "native", "1000", "--unlock", "+1h", "--fund", "-k", alice)
	assert.Equal(t, "funded", got["state"])
	assert.Equal(t, float64(testStart+3600), got["unlock_time"])

	shown := f.data("show", alice)
	assert.Equal(t, "funded", shown["state"])
	assert.Equal(t, got["lock"], shown["lock"])

	derived := f.data("derive", alice)
	assert.Equal(t, got["lock"], derived["lock"])

	assert.Equal(t, "TimeLockNotExpired", f.rejected("withdraw", "native", "-k", alice))

	f.oracle.Advance(3601)
	got = f.data("withdraw", "native", "-k", alice)
	assert.Equal(t, "withdrawn", got["state"])

	got = f.data("balance", alice)
	assert.Equal(t, float64(100000000), got["lamports"])

	assert.Equal(t, "LockNotFound", f.rejected("show", alice))

	trace := f.data("trace", "--verify")
	stats := trace["stats"].(map[string]any)
	assert.Equal(t, float64(5), stats["invocations"])
	assert.Equal(t, float64(4), stats["committed"])
	assert.Equal(t, float64(1), stats["rejected"])
	assert.Equal(t, true, trace["verification"].(map[string]any)["ok"])
}

func TestLockNativeFundSeparately(t *testing.T) {
	f := newCLIFixture(t)
	alice := f.key("alice")
	f.data("airdrop", alice, "100000000", "-k", alice)

	got := f.data("lock", "native", "1000", "--unlock", "+1h", "-k", alice)
	assert.Equal(t, "registered", got["state"])

	assert.Equal(t, "FundAmountMismatch", f.rejected("lock", "fund", "999", "-k", alice))

	got = f.data("cancel", "-k", alice)
	assert.Equal(t, "withdrawn", got["state"])

	got = f.data("balance", alice)
	assert.Equal(t, float64(100000000), got["lamports"])
}

func TestTokenLockFlow(t *testing.T) {
	f := newCLIFixture(t)
	issuer := f.key("issuer")
	alice := f.key("alice")
	eve := f.key("eve")
	mint := f.key("mint")

	for _, k := range []string{issuer, alice, eve} {
		f.data("airdrop", k, "100000000", "-k", k)
	}
	f.data("mint", "create", "--mint", mint, "--decimals", "6", "-k", issuer)
	got := f.data("mint", "to", mint, alice, "500", "-k", issuer)
	assert.Equal(t, float64(500), got["amount"])

	assert.Equal(t, "MissingSignature", f.rejected("mint", "to", mint, eve, "1", "-k", eve))

	got = f.data("lock", "token", mint, "500", "--unlock", "+10s", "-k", alice)
	assert.Equal(t, "funded", got["state"])

	derived := f.data("derive", alice, "--kind", "token", "--mint", mint)
	assert.Equal(t, got["lock"], derived["lock"])
	assert.Equal(t, got["vault"], derived["vault"])

	vault := f.data("balance", got["lock"].(string), "--mint", mint)
	assert.Equal(t, float64(500), vault["amount"])
	assert.Equal(t, got["vault"], vault["holding"])

	f.oracle.Advance(20)
	assert.Equal(t, "AuthorizationFailure",
		f.rejected("withdraw", "token", "--lock", got["lock"].(string), "-k", eve))

	rel := f.data("withdraw", "token", "-k", alice)
	assert.Equal(t, float64(500), rel["released"])

	bal := f.data("balance", alice, "--mint", mint)
	assert.Equal(t, float64(500), bal["amount"])

	bal = f.data("balance", alice)
	holdings := bal["holdings"].([]any)
	require.Len(t, holdings, 1)
	mintKey, err := LoadKeypair(mint)
	require.NoError(t, err)
	assert.Equal(t, mintKey.Public.String(), holdings[0].(map[string]any)["mint"])
	assert.Equal(t, float64(500), holdings[0].(map[string]any)["amount"])
}

func TestCommandErrors(t *testing.T) {
	f := newCLIFixture(t)
	alice := f.key("alice")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing keypair flag", []string{"airdrop", alice, "1"}, `required flag(s) "keypair" not set`},
		{"unreadable keypair", []string{"airdrop", alice, "1", "-k", filepath.Join(f.dir, "nope.key")}, "failed to load signer"},
		{"bad amount", []string{"airdrop", alice, "lots", "-k", alice}, "invalid amount"},
		{"bad unlock", []string{"lock", "native", "5", "--unlock", "tomorrow", "-k", alice}, "invalid --unlock"},
		{"bad kind", []string{"show", alice, "--kind", "gold"}, "invalid --kind"},
		{"bad address", []string{"balance", "not-an-address"}, "invalid address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigFileErrors(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run("trace", "--config", filepath.Join(f.dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
