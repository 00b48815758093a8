package cli

import (
	"context"
	"fmt"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

// submit signs an instruction with the keypair at keyFile, executes it
// and reports the completion. A recorded failure becomes ExitFailure;
// anything that prevented recording becomes ExitCommandError.
func submit(ctx context.Context, e *env, keyFile string, action ir.ActionRef, args ir.IRObject) error {
	kp, err := LoadKeypair(keyFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load signer", err)
	}
	out, err := execute(ctx, e, kp, action, args, "")
	if err != nil {
		return err
	}
	return report(e.out, out)
}

// execute signs and runs one instruction in flow. An empty flow starts a
// new one.
func execute(ctx context.Context, e *env, kp Keypair, action ir.ActionRef, args ir.IRObject, flow string) (engine.Outcome, error) {
	last, err := e.store.SignerNonce(ctx, kp.Public)
	if err != nil {
		return engine.Outcome{}, WrapExitError(ExitCommandError, "failed to read signer nonce", err)
	}
	nonce := last + 1

	msg, err := ir.SigningMessage(string(action), kp.Public, nonce, args)
	if err != nil {
		return engine.Outcome{}, WrapExitError(ExitCommandError, "failed to build instruction", err)
	}

	e.out.VerboseLog("%s signed by %s (nonce %d)", action, kp.Public, nonce)
	out, err := e.engine.Execute(ctx, engine.Request{
		Action:    action,
		Signer:    kp.Public,
		Args:      args,
		Signature: kp.Sign(msg),
		Nonce:     nonce,
		FlowToken: flow,
	})
	if err != nil {
		return engine.Outcome{}, WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", action), err)
	}
	return out, nil
}

// report prints an outcome. Failures are printed as errors and returned
// as ExitFailure.
func report(f *OutputFormatter, out engine.Outcome) error {
	f.VerboseLog("flow %s seq %d/%d", out.Invocation.FlowToken, out.Invocation.Seq, out.Completion.Seq)

	if out.Succeeded() {
		return f.Success(out.Completion.Result)
	}

	var details any
	if f.Verbose {
		details = out.Completion.Result
	}
	if err := f.Error(out.Completion.OutputCase, out.Err.Error(), details); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, out.Completion.OutputCase, out.Err)
}
