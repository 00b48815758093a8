package timelock

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/roach88/timelock/internal/ir"
)

// Lifecycle state names.
const (
	StateNameUninitialized = "uninitialized"
	StateNameRegistered    = "registered"
	StateNameFunded        = "funded"
	StateNameWithdrawn     = "withdrawn"
)

// Lifecycle events.
const (
	EventRegister = "register"
	EventFund     = "fund"
	EventLock     = "lock" // Token: create and fund in one step
	EventWithdraw = "withdraw"
	EventCancel   = "cancel"
)

// newLifecycle returns the state machine for one lock of kind, positioned
// at current.
//
// Native: uninitialized -register-> registered -fund-> funded -withdraw-> withdrawn,
// and registered -cancel-> withdrawn.
// Token: uninitialized -lock-> funded -withdraw-> withdrawn.
func newLifecycle(kind AssetKind, current string) *fsm.FSM {
	var events fsm.Events
	switch kind {
	case KindToken:
		events = fsm.Events{
			{Name: EventLock, Src: []string{StateNameUninitialized}, Dst: StateNameFunded},
			{Name: EventWithdraw, Src: []string{StateNameFunded}, Dst: StateNameWithdrawn},
		}
	default:
		events = fsm.Events{
			{Name: EventRegister, Src: []string{StateNameUninitialized}, Dst: StateNameRegistered},
			{Name: EventFund, Src: []string{StateNameRegistered}, Dst: StateNameFunded},
			{Name: EventWithdraw, Src: []string{StateNameFunded}, Dst: StateNameWithdrawn},
			{Name: EventCancel, Src: []string{StateNameRegistered}, Dst: StateNameWithdrawn},
		}
	}
	return fsm.NewFSM(current, events, fsm.Callbacks{})
}

// stateName maps a live record's state to its lifecycle name.
func stateName(r *Record) string {
	if r == nil {
		return StateNameUninitialized
	}
	return r.State.String()
}

// transition applies event to a lock of kind in state from and returns
// the destination state. Disallowed transitions fail with InvalidLockState.
func transition(ctx context.Context, kind AssetKind, from, event string) (string, error) {
	machine := newLifecycle(kind, from)
	if err := machine.Event(ctx, event); err != nil {
		return "", newError(ErrCodeInvalidLockState, ir.Pubkey{}, fmt.Sprintf("%s %s lock cannot %s", from, kind, event)).
			with("state", from).
			with("event", event)
	}
	return machine.Current(), nil
}

// transitionStored is transition for events that leave a live record
// behind. A destination with no stored form, such as withdrawn, fails
// with InvalidLockState instead of writing a zero state byte.
func transitionStored(ctx context.Context, kind AssetKind, from, event string) (LockState, error) {
	next, err := transition(ctx, kind, from, event)
	if err != nil {
		return 0, err
	}
	state, ok := persistedState(next)
	if !ok {
		return 0, newError(ErrCodeInvalidLockState, ir.Pubkey{}, fmt.Sprintf("%s leaves no live %s lock", event, kind)).
			with("state", next).
			with("event", event)
	}
	return state, nil
}

// persistedState maps a lifecycle name back to the stored state byte.
// Withdrawn locks are not stored.
func persistedState(name string) (LockState, bool) {
	switch name {
	case StateNameRegistered:
		return StateRegistered, true
	case StateNameFunded:
		return StateFunded, true
	default:
		return 0, false
	}
}
