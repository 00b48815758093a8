package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
	"github.com/roach88/timelock/internal/testutil"
	"github.com/roach88/timelock/internal/timelock"
)

// setupMessage is signed by identities to authorise setup writes.
var setupMessage = []byte("timelock-harness-setup")

// Harness runs one scenario against a fresh ledger.
type Harness struct {
	store   *store.Store
	runtime *ledger.Runtime
	program *timelock.Program
	engine  *engine.Engine
	oracle  *testutil.ManualOracle
	logger  *slog.Logger

	identities map[string]testutil.Keypair
	mints      map[string]ir.Pubkey
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Setup writes go
// straight to the ledger and are not traced; flow steps are signed by
// the named identity and executed by the engine, so the trace is the
// engine's own operation log.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	oracle := testutil.NewManualOracle(scenario.StartTime)
	rt := ledger.NewRuntime(st, oracle, ledger.WithLogger(logger))
	program := timelock.NewProgram(ir.DefaultTimelockProgramID, logger)

	h := &Harness{
		store:   st,
		runtime: rt,
		program: program,
		engine: engine.New(rt, program,
			engine.WithClock(testutil.NewDeterministicClock()),
			engine.WithFlowGenerator(testutil.NewFixedFlowGenerator(scenario.FlowToken)),
			engine.WithLogger(logger),
		),
		oracle:     oracle,
		logger:     logger,
		identities: make(map[string]testutil.Keypair),
		mints:      make(map[string]ir.Pubkey),
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Runtime: rt,
		Program: program,
		Refs:    h,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeSetup funds accounts, creates mints and issues initial holdings
// in a single ledger transaction.
func (h *Harness) executeSetup(ctx context.Context, scenario *Scenario) error {
	for _, a := range scenario.Accounts {
		h.identities[a.Name] = testutil.NewKeypair(a.Name)
	}
	for _, m := range scenario.Mints {
		h.mints[m.Name] = testutil.Address("mint:" + m.Name)
	}

	return h.runtime.Transact(ctx, 0, func(c *ledger.Context) error {
		for _, a := range scenario.Accounts {
			if a.Lamports == 0 {
				continue
			}
			if err := c.Airdrop(h.identities[a.Name].Public, uint64(a.Lamports)); err != nil {
				return fmt.Errorf("account %s: %w", a.Name, err)
			}
		}

		for _, m := range scenario.Mints {
			authority, err := h.setupSigner(m.Authority)
			if err != nil {
				return err
			}
			mint := h.mints[m.Name]
			if err := c.CreateMint(mint, authority.SignerKey(), uint8(m.Decimals)); err != nil {
				return fmt.Errorf("mint %s: %w", m.Name, err)
			}
			for _, holder := range m.Holders {
				holding, _, err := c.EnsureAssociatedHoldingAccount(authority, h.identities[holder.Owner].Public, mint)
				if err != nil {
					return fmt.Errorf("mint %s holder %s: %w", m.Name, holder.Owner, err)
				}
				if err := c.MintTo(authority, mint, holding, uint64(holder.Amount)); err != nil {
					return fmt.Errorf("mint %s holder %s: %w", m.Name, holder.Owner, err)
				}
			}
		}
		return nil
	})
}

func (h *Harness) setupSigner(name string) (ledger.KeySigner, error) {
	kp, ok := h.identities[name]
	if !ok {
		return ledger.KeySigner{}, fmt.Errorf("unknown identity %q", name)
	}
	return ledger.VerifyKeySigner(kp.Public, setupMessage, kp.Sign(setupMessage))
}

// executeFlow runs the flow steps through the engine and checks each
// step's expect clause against the recorded completion.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if step.At != nil {
			h.oracle.Set(*step.At)
		}

		resolved, err := h.Resolve(step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		args, err := ir.ObjectFromMap(resolved.(map[string]any))
		if err != nil {
			return fmt.Errorf("flow step %d: failed to convert args: %w", i, err)
		}

		kp := h.identities[step.Signer]
		last, err := h.store.SignerNonce(ctx, kp.Public)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		sig, err := kp.SignInstruction(step.Invoke, last+1, args)
		if err != nil {
			return fmt.Errorf("flow step %d: failed to sign: %w", i, err)
		}

		out, err := h.engine.Execute(ctx, engine.Request{
			Action:    ir.ActionRef(step.Invoke),
			Signer:    kp.Public,
			Args:      args,
			Signature: sig,
			Nonce:     last + 1,
		})
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}

		result.AddInvocationTrace(step.Invoke, step.Signer, args, out.Invocation.Seq)
		result.AddCompletionTrace(out.Completion.OutputCase, out.Completion.Result, out.Completion.Seq, out.Completion.Committed)

		if msg := h.checkExpect(i, step, out.Completion); msg != "" {
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"signer", step.Signer,
			"output_case", out.Completion.OutputCase,
			"seq", out.Completion.Seq,
		)
	}
	return nil
}

func (h *Harness) checkExpect(index int, step FlowStep, comp ir.Completion) string {
	expectedCase := ir.OutputSuccess
	if step.Expect != nil {
		expectedCase = step.Expect.Case
	}
	if comp.OutputCase != expectedCase {
		detail := ""
		if msg, ok := comp.Result["message"].(ir.IRString); ok {
			detail = ": " + string(msg)
		}
		return fmt.Sprintf("flow step %d (%s): expected case %s, got %s%s",
			index, step.Invoke, expectedCase, comp.OutputCase, detail)
	}
	if step.Expect == nil || len(step.Expect.Result) == 0 {
		return ""
	}

	resolved, err := h.Resolve(step.Expect.Result)
	if err != nil {
		return fmt.Sprintf("flow step %d: expect result: %v", index, err)
	}
	want, err := ir.ObjectFromMap(resolved.(map[string]any))
	if err != nil {
		return fmt.Sprintf("flow step %d: expect result: %v", index, err)
	}
	if !matchArgs(comp.Result, want) {
		return fmt.Sprintf("flow step %d (%s): result %v does not match expected %v",
			index, step.Invoke, comp.Result, want)
	}
	return ""
}

// Resolve replaces references in a decoded YAML value:
//
//	$name             identity public key or mint address
//	$lock:name:kind   custody address of name's lock of kind
//
// Maps and slices are resolved recursively.
func (h *Harness) Resolve(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, "$") {
			return val, nil
		}
		addr, err := h.Address(val)
		if err != nil {
			return nil, err
		}
		return addr.String(), nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			r, err := h.Resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			r, err := h.Resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// Address resolves a reference, with or without the leading '$', to an
// address.
func (h *Harness) Address(ref string) (ir.Pubkey, error) {
	name := strings.TrimPrefix(ref, "$")

	if rest, ok := strings.CutPrefix(name, "lock:"); ok {
		owner, kindName, found := strings.Cut(rest, ":")
		if !found {
			return ir.Pubkey{}, fmt.Errorf("reference %q: want $lock:name:kind", ref)
		}
		kind, err := timelock.ParseAssetKind(kindName)
		if err != nil {
			return ir.Pubkey{}, fmt.Errorf("reference %q: %w", ref, err)
		}
		kp, ok := h.identities[owner]
		if !ok {
			return ir.Pubkey{}, fmt.Errorf("reference %q: unknown identity %q", ref, owner)
		}
		addr, _, err := h.program.DeriveLockAddress(kp.Public, kind)
		return addr, err
	}

	if kp, ok := h.identities[name]; ok {
		return kp.Public, nil
	}
	if mint, ok := h.mints[name]; ok {
		return mint, nil
	}
	return ir.Pubkey{}, fmt.Errorf("unknown reference %q", ref)
}

// Identity returns the public key of a declared identity.
func (h *Harness) Identity(name string) (ir.Pubkey, bool) {
	kp, ok := h.identities[name]
	return kp.Public, ok
}
