package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/timelock/internal/derive"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/timelock"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case "invocation":
				fmt.Fprintf(&buf, "  [%d] %s by %s\n", event.Seq, event.ActionURI, event.Signer)
			case "completion":
				fmt.Fprintf(&buf, "  [%d]   -> %s\n", event.Seq, event.OutputCase)
			}
		}
	}

	return buf.String()
}

// References resolves scenario names to ledger addresses.
type References interface {
	Resolve(v any) (any, error)
	Address(ref string) (ir.Pubkey, error)
	Identity(name string) (ir.Pubkey, bool)
}

// AssertionContext provides ledger access for state assertions.
type AssertionContext struct {
	Ctx     context.Context
	Runtime *ledger.Runtime
	Program *timelock.Program
	Refs    References
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// Trace assertions need only the result; balance and lock_state need actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion, actx)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertBalance, AssertLockState:
			if actx == nil || actx.Runtime == nil || actx.Refs == nil {
				err = fmt.Errorf("assertion[%d]: %s requires ledger context", i, assertion.Type)
			} else if assertion.Type == AssertBalance {
				err = assertBalance(actx, assertion)
			} else {
				err = assertLockState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertTraceContains checks for an invocation of the action, optionally
// by a given signer and with matching args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	want := ir.IRObject{}
	if len(assertion.Args) > 0 {
		raw := any(assertion.Args)
		if actx != nil && actx.Refs != nil {
			resolved, err := actx.Refs.Resolve(assertion.Args)
			if err != nil {
				return fmt.Errorf("trace_contains: %w", err)
			}
			raw = resolved
		}
		obj, err := ir.ObjectFromMap(raw.(map[string]any))
		if err != nil {
			return fmt.Errorf("trace_contains: %w", err)
		}
		want = obj
	}

	for _, event := range trace {
		if event.Type != "invocation" || event.ActionURI != assertion.Action {
			continue
		}
		if assertion.Signer != "" && event.Signer != assertion.Signer {
			continue
		}
		if matchArgs(event.Args, want) {
			return nil
		}
	}

	expected := "action " + assertion.Action
	if assertion.Signer != "" {
		expected += " by " + assertion.Signer
	}
	if len(want) > 0 {
		expected += fmt.Sprintf(" with args %v", want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the actions appear in the specified order.
// Actions don't need to be consecutive, and a repeated action may be
// matched by any of its occurrences.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Actions) {
			break
		}
		if event.Type == "invocation" && event.ActionURI == assertion.Actions[next] {
			next++
		}
	}
	if next == len(assertion.Actions) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
		Actual:   fmt.Sprintf("no %s after %v", assertion.Actions[next], assertion.Actions[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the action was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == "invocation" && event.ActionURI == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertBalance checks a native balance, or with Mint set, the token
// amount in the account's associated holding account. A missing account
// has balance zero.
func assertBalance(actx *AssertionContext, assertion Assertion) error {
	addr, err := actx.Refs.Address(assertion.Account)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}

	var got, want int64
	unit := "lamports"
	err = actx.Runtime.View(actx.Ctx, func(c *ledger.Context) error {
		if assertion.Mint == "" {
			want = *assertion.Lamports
			bal, err := c.Balance(addr)
			got = int64(bal)
			return err
		}

		unit = "tokens"
		want = *assertion.Amount
		mint, err := actx.Refs.Address(assertion.Mint)
		if err != nil {
			return err
		}
		holding, _, err := derive.AssociatedHoldingAddress(addr, mint)
		if err != nil {
			return err
		}
		ta, err := c.HoldingAccount(holding)
		if ledger.IsCode(err, ledger.ErrCodeAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		got = int64(ta.Amount)
		return nil
	})
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}

	if got != want {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %d %s", assertion.Account, want, unit),
			Actual:   fmt.Sprintf("%d %s", got, unit),
		}
	}
	return nil
}

// assertLockState checks the lifecycle state of a depositor's lock.
func assertLockState(actx *AssertionContext, assertion Assertion) error {
	depositor, ok := actx.Refs.Identity(assertion.Depositor)
	if !ok {
		return fmt.Errorf("lock_state: unknown identity %q", assertion.Depositor)
	}
	kind, err := timelock.ParseAssetKind(assertion.Kind)
	if err != nil {
		return fmt.Errorf("lock_state: %w", err)
	}

	got := StateAbsent
	err = actx.Runtime.View(actx.Ctx, func(c *ledger.Context) error {
		info, err := actx.Program.GetLock(c, depositor, kind)
		if timelock.IsCode(err, timelock.ErrCodeLockNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		got = info.Record.State.String()
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock_state: %w", err)
	}

	if got != assertion.State {
		return &AssertionError{
			Type:     AssertLockState,
			Expected: fmt.Sprintf("%s lock of %s is %s", assertion.Kind, assertion.Depositor, assertion.State),
			Actual:   got,
		}
	}
	return nil
}

// matchArgs checks if actual contains all expected keys (subset match).
// Nested objects are matched the same way; other values must be equal.
func matchArgs(actual, expected ir.IRObject) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

func valuesEqual(actual, expected ir.IRValue) bool {
	if exp, ok := expected.(ir.IRObject); ok {
		act, ok := actual.(ir.IRObject)
		return ok && matchArgs(act, exp)
	}
	return reflect.DeepEqual(actual, expected)
}
