package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timelock/internal/timelock"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// StartTime is the ledger time, in unix seconds, before the first step.
	StartTime int64 `yaml:"start_time"`

	// FlowToken is recorded on every invocation. Defaults to
	// "test-flow-default" so golden traces stay stable.
	FlowToken string `yaml:"flow_token,omitempty"`

	// Accounts are identities funded before the flow.
	Accounts []AccountSetup `yaml:"accounts"`

	// Mints are token classes created before the flow, with initial holders.
	Mints []MintSetup `yaml:"mints,omitempty"`

	Flow       []FlowStep  `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSetup funds a named identity.
type AccountSetup struct {
	Name     string `yaml:"name"`
	Lamports int64  `yaml:"lamports"`
}

// MintSetup creates a named token class.
type MintSetup struct {
	Name      string   `yaml:"name"`
	Authority string   `yaml:"authority"`
	Decimals  int      `yaml:"decimals,omitempty"`
	Holders   []Holder `yaml:"holders,omitempty"`
}

// Holder receives tokens in its associated holding account during setup.
type Holder struct {
	Owner  string `yaml:"owner"`
	Amount int64  `yaml:"amount"`
}

// FlowStep is one signed instruction.
type FlowStep struct {
	// At moves the ledger clock to this unix time before the step. The
	// clock never moves backwards.
	At *int64 `yaml:"at,omitempty"`

	Invoke string         `yaml:"invoke"`
	Signer string         `yaml:"signer"`
	Args   map[string]any `yaml:"args"`

	// Expect defaults to case Success.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected completion.
type ExpectClause struct {
	Case string `yaml:"case"`

	// Result is a subset match on the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final ledger state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_count
	Action string         `yaml:"action,omitempty"`
	Signer string         `yaml:"signer,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`
	Count  int            `yaml:"count,omitempty"`

	// trace_order
	Actions []string `yaml:"actions,omitempty"`

	// balance
	Account  string `yaml:"account,omitempty"`
	Mint     string `yaml:"mint,omitempty"`
	Lamports *int64 `yaml:"lamports,omitempty"`
	Amount   *int64 `yaml:"amount,omitempty"`

	// lock_state
	Depositor string `yaml:"depositor,omitempty"`
	Kind      string `yaml:"kind,omitempty"`
	State     string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBalance       = "balance"
	AssertLockState     = "lock_state"
)

// StateAbsent is the lock_state of a depositor with no live lock.
const StateAbsent = "absent"

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.StartTime <= 0 {
		return fmt.Errorf("start_time must be a positive unix time")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("accounts list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	identities := make(map[string]bool)
	for i, a := range s.Accounts {
		if a.Name == "" || strings.ContainsAny(a.Name, "$:") {
			return fmt.Errorf("accounts[%d]: name must be non-empty without '$' or ':'", i)
		}
		if identities[a.Name] {
			return fmt.Errorf("accounts[%d]: duplicate name %q", i, a.Name)
		}
		if a.Lamports < 0 {
			return fmt.Errorf("accounts[%d]: lamports must be non-negative", i)
		}
		identities[a.Name] = true
	}

	mints := make(map[string]bool)
	for i, m := range s.Mints {
		if m.Name == "" || strings.ContainsAny(m.Name, "$:") {
			return fmt.Errorf("mints[%d]: name must be non-empty without '$' or ':'", i)
		}
		if identities[m.Name] || mints[m.Name] {
			return fmt.Errorf("mints[%d]: name %q already used", i, m.Name)
		}
		if !identities[m.Authority] {
			return fmt.Errorf("mints[%d]: authority %q is not a declared account", i, m.Authority)
		}
		if m.Decimals < 0 || m.Decimals > 255 {
			return fmt.Errorf("mints[%d]: decimals out of range", i)
		}
		for j, h := range m.Holders {
			if !identities[h.Owner] {
				return fmt.Errorf("mints[%d].holders[%d]: owner %q is not a declared account", i, j, h.Owner)
			}
			if h.Amount <= 0 {
				return fmt.Errorf("mints[%d].holders[%d]: amount must be positive", i, j)
			}
		}
		mints[m.Name] = true
	}

	last := s.StartTime
	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !identities[step.Signer] {
			return fmt.Errorf("flow[%d]: signer %q is not a declared account", i, step.Signer)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
		if step.At != nil {
			if *step.At < last {
				return fmt.Errorf("flow[%d]: at %d is before the previous ledger time %d", i, *step.At, last)
			}
			last = *step.At
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], identities); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, identities map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBalance:
		if a.Account == "" {
			return fmt.Errorf("assertions[%d]: account is required for balance", index)
		}
		if a.Mint == "" && a.Lamports == nil {
			return fmt.Errorf("assertions[%d]: lamports is required for a native balance", index)
		}
		if a.Mint != "" && a.Amount == nil {
			return fmt.Errorf("assertions[%d]: amount is required for a token balance", index)
		}
	case AssertLockState:
		if !identities[a.Depositor] {
			return fmt.Errorf("assertions[%d]: depositor %q is not a declared account", index, a.Depositor)
		}
		if _, err := timelock.ParseAssetKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		switch a.State {
		case StateAbsent, timelock.StateNameRegistered, timelock.StateNameFunded:
		default:
			return fmt.Errorf("assertions[%d]: state must be absent, registered or funded", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
