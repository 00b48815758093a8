package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
	"github.com/roach88/timelock/internal/timelock"
)

// Request is a signed instruction as submitted by a client.
type Request struct {
	Action    ir.ActionRef
	Signer    ir.Pubkey
	Args      ir.IRObject
	Signature []byte

	// Nonce must exceed every nonce the signer has consumed. It is part of
	// the signed message, so each signature is accepted at most once.
	Nonce int64

	// FlowToken correlates related requests. Generated when empty.
	FlowToken string
}

// Outcome is what the engine recorded for one request.
type Outcome struct {
	Invocation ir.Invocation
	Completion ir.Completion

	// Err is the program or ledger failure, nil on success. The ledger
	// was left untouched when Err is set.
	Err error
}

// Succeeded reports whether the instruction committed.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Handler executes one action inside a ledger transaction.
type Handler func(c *ledger.Context, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error)

// Engine executes signed instructions one at a time and records each in
// the operation log.
//
// Thread-safety model:
//   - Execute: safe from any goroutine, serialised internally
//   - Submit: safe from any goroutine, processed by Run
//   - Run: at most one goroutine
type Engine struct {
	runtime  *ledger.Runtime
	program  *timelock.Program
	clock    SeqSource
	flowGen  FlowTokenGenerator
	metrics  *Metrics
	logger   *slog.Logger
	handlers map[ir.ActionRef]Handler
	queue    *requestQueue

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the sequence source. Default: NewClock().
func WithClock(c SeqSource) Option {
	return func(e *Engine) { e.clock = c }
}

// WithFlowGenerator sets the flow token generator. Default: UUIDv7Generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(e *Engine) { e.flowGen = g }
}

// WithMetrics sets the metrics sink. Default: a fresh NewMetrics().
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine that dispatches the timelock instructions to
// program and the ledger administration actions to the runtime.
func New(rt *ledger.Runtime, program *timelock.Program, opts ...Option) *Engine {
	e := &Engine{
		runtime:  rt,
		program:  program,
		clock:    NewClock(),
		flowGen:  UUIDv7Generator{},
		logger:   slog.Default(),
		handlers: make(map[ir.ActionRef]Handler),
		queue:    newRequestQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics()
	}

	for _, action := range timelock.Actions() {
		e.handlers[action] = func(c *ledger.Context, signer ledger.Signer, args ir.IRObject) (ir.IRObject, error) {
			return program.Execute(c, action, signer, args)
		}
	}
	registerLedgerActions(e)

	return e
}

// ClockFromStore returns a clock positioned after the highest seq in the
// store's operation log.
func ClockFromStore(ctx context.Context, st *store.Store) (*Clock, error) {
	seq, err := st.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	return NewClockAt(seq), nil
}

// Register installs h for action, replacing any existing handler.
func (e *Engine) Register(action ir.ActionRef, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = h
}

// Program returns the timelock program.
func (e *Engine) Program() *timelock.Program {
	return e.program
}

// Metrics returns the metrics sink.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// NewFlow generates a flow token.
func (e *Engine) NewFlow() string {
	return e.flowGen.Generate()
}

// Execute verifies, runs and records req.
//
// A program or ledger failure is not an error: it is reported in
// Outcome.Err and recorded with Committed=false. A verified request
// consumes its nonce whether or not the program accepts it; a request
// with a bad signature or a stale nonce consumes nothing. The returned error is
// reserved for unknown actions and infrastructure failures, in which case
// nothing is recorded.
func (e *Engine) Execute(ctx context.Context, req Request) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execute(ctx, req)
}

func (e *Engine) execute(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	action := string(req.Action)

	handler, ok := e.handlers[req.Action]
	if !ok {
		e.metrics.observe(action, outcomeRejected, started, 0)
		return Outcome{}, NewUnknownActionError(req.Action)
	}

	args := req.Args
	if args == nil {
		args = ir.IRObject{}
	}
	flow := req.FlowToken
	if flow == "" {
		flow = e.flowGen.Generate()
	}

	invSeq := e.clock.Next()
	compSeq := e.clock.Next()

	inv, err := newInvocation(flow, req.Action, req.Signer, args, invSeq)
	if err != nil {
		e.metrics.observe(action, outcomeError, started, 0)
		return Outcome{}, err
	}

	log := e.logger.With("action", action, "flow", flow, "seq", invSeq)

	signer, failure := e.verify(req, args)
	consumed := false
	if failure == nil {
		var out Outcome
		txErr := e.runtime.Transact(ctx, invSeq, func(c *ledger.Context) error {
			if err := consumeNonce(ctx, c.Tx(), req); err != nil {
				return err
			}
			result, err := handler(c, signer, args)
			if err != nil {
				return err
			}
			comp, err := newCompletion(inv.ID, ir.OutputSuccess, result, compSeq, true)
			if err != nil {
				return err
			}
			if err := c.Tx().WriteInvocation(ctx, inv); err != nil {
				return err
			}
			if err := c.Tx().WriteCompletion(ctx, comp); err != nil {
				return err
			}
			out = Outcome{Invocation: inv, Completion: comp}
			return nil
		})
		if txErr == nil {
			log.Info("instruction committed")
			e.metrics.observe(action, outcomeSuccess, started, compSeq)
			return out, nil
		}
		if _, domain := outputCase(txErr); !domain {
			log.Error("instruction aborted", "error", txErr)
			e.metrics.observe(action, outcomeError, started, 0)
			return Outcome{}, fmt.Errorf("execute %s: %w", action, txErr)
		}
		failure = txErr
		consumed = !IsStaleNonce(txErr)
	}

	var nonce int64
	if consumed {
		nonce = req.Nonce
	}
	out, err := e.audit(ctx, inv, failure, compSeq, req.Signer, nonce)
	if err != nil {
		log.Error("audit write failed", "error", err, "failure", failure)
		e.metrics.observe(action, outcomeError, started, 0)
		return Outcome{}, err
	}
	log.Warn("instruction failed", "case", out.Completion.OutputCase, "error", failure)
	e.metrics.observe(action, outcomeFailure, started, compSeq)
	return out, nil
}

// verify checks the signature before any ledger state is touched.
func (e *Engine) verify(req Request, args ir.IRObject) (ledger.KeySigner, error) {
	msg, err := ir.SigningMessage(string(req.Action), req.Signer, req.Nonce, args)
	if err != nil {
		return ledger.KeySigner{}, NewInvalidRequestError(req.Action, "args", err)
	}
	return ledger.VerifyKeySigner(req.Signer, msg, req.Signature)
}

// consumeNonce rejects a nonce the signer has already used and records
// the new one in the instruction's transaction.
func consumeNonce(ctx context.Context, tx *store.Tx, req Request) error {
	last, err := tx.SignerNonce(ctx, req.Signer)
	if err != nil {
		return err
	}
	if req.Nonce <= last {
		return NewStaleNonceError(req.Action, req.Nonce, last)
	}
	return tx.AdvanceSignerNonce(ctx, req.Signer, req.Nonce)
}

// audit records a failed instruction in its own transaction. A positive
// nonce is consumed with it, since the program rolled back its own write.
func (e *Engine) audit(ctx context.Context, inv ir.Invocation, failure error, seq int64, signer ir.Pubkey, nonce int64) (Outcome, error) {
	outCase, _ := outputCase(failure)
	comp, err := newCompletion(inv.ID, outCase, failureResult(failure), seq, false)
	if err != nil {
		return Outcome{}, err
	}

	err = e.runtime.Store().InTx(ctx, func(tx *store.Tx) error {
		if nonce > 0 {
			if err := tx.AdvanceSignerNonce(ctx, signer, nonce); err != nil {
				return err
			}
		}
		if err := tx.WriteInvocation(ctx, inv); err != nil {
			return err
		}
		return tx.WriteCompletion(ctx, comp)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record failed %s: %w", inv.ActionURI, err)
	}
	return Outcome{Invocation: inv, Completion: comp, Err: failure}, nil
}

func newInvocation(flow string, action ir.ActionRef, signer ir.Pubkey, args ir.IRObject, seq int64) (ir.Invocation, error) {
	signerStr := ""
	if !signer.IsZero() {
		signerStr = signer.String()
	}
	id, err := ir.InvocationID(flow, string(action), signerStr, args, seq)
	if err != nil {
		return ir.Invocation{}, err
	}
	return ir.Invocation{
		ID:            id,
		FlowToken:     flow,
		ActionURI:     action,
		Args:          args,
		Signer:        signerStr,
		Seq:           seq,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}, nil
}

func newCompletion(invID, outCase string, result ir.IRObject, seq int64, committed bool) (ir.Completion, error) {
	if result == nil {
		result = ir.IRObject{}
	}
	id, err := ir.CompletionID(invID, outCase, result, seq)
	if err != nil {
		return ir.Completion{}, err
	}
	return ir.Completion{
		ID:           id,
		InvocationID: invID,
		OutputCase:   outCase,
		Result:       result,
		Seq:          seq,
		Committed:    committed,
	}, nil
}

// outputCase maps a failure to its log output case. The bool is false for
// infrastructure errors, which are never recorded.
func outputCase(err error) (string, bool) {
	if code, ok := timelock.CodeOf(err); ok {
		return string(code), true
	}
	if code, ok := ledger.CodeOf(err); ok {
		return string(code), true
	}
	var re *RuntimeError
	if errors.As(err, &re) && (re.Code == ErrCodeInvalidRequest || re.Code == ErrCodeStaleNonce) {
		return string(re.Code), true
	}
	return "", false
}

func failureResult(err error) ir.IRObject {
	result := ir.IRObject{"message": ir.IRString(err.Error())}
	var te *timelock.Error
	if errors.As(err, &te) {
		result["error_code"] = ir.IRInt(te.Number())
		if !te.Lock.IsZero() {
			result["lock"] = ir.IRString(te.Lock.String())
		}
	}
	return result
}

// Submit queues req for the Run loop. The returned channel receives
// exactly one Result.
func (e *Engine) Submit(ctx context.Context, req Request) (<-chan Result, error) {
	reply := make(chan Result, 1)
	if !e.queue.Enqueue(pending{ctx: ctx, req: req, reply: reply}) {
		return nil, errStopped()
	}
	return reply, nil
}

// Run processes submitted requests in FIFO order until ctx is cancelled
// or Stop is called. Requests still queued when Run exits are answered
// with an EngineStopped error.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")
	defer e.drain()

	for {
		if p, ok := e.queue.TryDequeue(); ok {
			outcome, err := e.Execute(p.ctx, p.req)
			p.reply <- Result{Outcome: outcome, Err: err}
			continue
		}

		if e.queue.Closed() {
			e.logger.Info("engine stopped")
			return nil
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			e.logger.Info("engine stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-e.queue.Wait():
		}
	}
}

// Stop closes the queue. Run finishes the requests already queued and
// returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) drain() {
	for {
		p, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		p.reply <- Result{Err: errStopped()}
	}
}
