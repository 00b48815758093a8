// Package timelock implements the time-locked custody program.
//
// A depositor locks a native balance or a token balance at a custody
// address derived from a domain tag and the depositor's identity. Nobody
// can withdraw before the unlock time; afterwards only the depositor can,
// and withdrawal releases the whole live custody balance and retires the
// lock record.
//
// Native locks take two steps (register, then fund) and live in the data
// of their custody account. Token locks are created and funded in one step;
// the tokens sit in the associated holding account of the custody address,
// which signs for itself through a derive.SeedSigner on withdrawal.
//
// Every operation runs inside one ledger transaction. Guards run before
// any mutation and every failure is a *Error; nothing is committed when an
// operation fails.
package timelock
