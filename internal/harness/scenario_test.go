package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarioYAML = `
name: test_scenario
description: "Test scenario for validation"
start_time: 1700000000
accounts:
  - name: alice
    lamports: 1000000
mints:
  - name: gold
    authority: alice
    holders:
      - owner: alice
        amount: 10
flow:
  - invoke: timelock.initialize_lock_native
    signer: alice
    args: { amount: 5, unlock_time: 1700000100 }
  - at: 1700000200
    invoke: timelock.withdraw_native
    signer: alice
    args: { lock: $lock:alice:native }
    expect:
      case: InvalidLockState
assertions:
  - type: lock_state
    depositor: alice
    kind: native
    state: registered
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenarioYAML), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, int64(1700000000), scenario.StartTime)
	require.Len(t, scenario.Accounts, 1)
	require.Len(t, scenario.Mints, 1)
	assert.Equal(t, "alice", scenario.Mints[0].Holders[0].Owner)

	require.Len(t, scenario.Flow, 2)
	assert.Nil(t, scenario.Flow[0].At)
	assert.Nil(t, scenario.Flow[0].Expect)
	assert.Equal(t, 5, scenario.Flow[0].Args["amount"])
	require.NotNil(t, scenario.Flow[1].At)
	assert.Equal(t, int64(1700000200), *scenario.Flow[1].At)
	assert.Equal(t, "$lock:alice:native", scenario.Flow[1].Args["lock"])
	assert.Equal(t, "InvalidLockState", scenario.Flow[1].Expect.Case)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(validScenarioYAML + "\nsetup: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	base := func() *Scenario {
		s, err := ParseScenario([]byte(validScenarioYAML))
		require.NoError(t, err)
		return s
	}
	at := func(v int64) *int64 { return &v }
	zero := int64(0)

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		want   string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing start time", func(s *Scenario) { s.StartTime = 0 }, "start_time"},
		{"no accounts", func(s *Scenario) { s.Accounts = nil }, "accounts list"},
		{"no flow", func(s *Scenario) { s.Flow = nil }, "flow list"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list"},
		{"reserved character", func(s *Scenario) { s.Accounts[0].Name = "a:b" }, "without '$' or ':'"},
		{"duplicate account", func(s *Scenario) { s.Accounts = append(s.Accounts, s.Accounts[0]) }, "duplicate name"},
		{"mint shadows account", func(s *Scenario) { s.Mints[0].Name = "alice" }, "already used"},
		{"unknown authority", func(s *Scenario) { s.Mints[0].Authority = "bob" }, "authority \"bob\""},
		{"zero holding", func(s *Scenario) { s.Mints[0].Holders[0].Amount = 0 }, "amount must be positive"},
		{"unknown signer", func(s *Scenario) { s.Flow[0].Signer = "mallory" }, "signer \"mallory\""},
		{"nil args", func(s *Scenario) { s.Flow[0].Args = nil }, "args is required"},
		{"empty expect case", func(s *Scenario) { s.Flow[0].Expect = &ExpectClause{} }, "case is required"},
		{"time goes backwards", func(s *Scenario) { s.Flow[0].At = at(1700000300) }, "before the previous ledger time"},
		{"unknown assertion", func(s *Scenario) { s.Assertions[0].Type = "final_state" }, "unknown assertion type"},
		{"bad kind", func(s *Scenario) { s.Assertions[0].Kind = "gold" }, "unknown asset kind"},
		{"bad state", func(s *Scenario) { s.Assertions[0].State = "withdrawn" }, "state must be"},
		{"balance without lamports", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertBalance, Account: "alice"}}
		}, "lamports is required"},
		{"token balance without amount", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertBalance, Account: "alice", Mint: "gold", Lamports: &zero}}
		}, "amount is required"},
		{"trace_order without actions", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertTraceOrder}}
		}, "actions list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, file := range files {
		_, err := LoadScenario(file)
		assert.NoError(t, err, file)
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "golden"), 0o755))

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)

	files, err = FindScenarios(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = FindScenarios(dir, "zzz")
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "zzz", notFound.Filter)
}
