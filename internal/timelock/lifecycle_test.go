package timelock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_Native(t *testing.T) {
	ctx := context.Background()

	state, err := transition(ctx, KindNative, StateNameUninitialized, EventRegister)
	require.NoError(t, err)
	assert.Equal(t, StateNameRegistered, state)

	state, err = transition(ctx, KindNative, state, EventFund)
	require.NoError(t, err)
	assert.Equal(t, StateNameFunded, state)

	state, err = transition(ctx, KindNative, state, EventWithdraw)
	require.NoError(t, err)
	assert.Equal(t, StateNameWithdrawn, state)

	state, err = transition(ctx, KindNative, StateNameRegistered, EventCancel)
	require.NoError(t, err)
	assert.Equal(t, StateNameWithdrawn, state)
}

func TestLifecycle_Token(t *testing.T) {
	ctx := context.Background()

	state, err := transition(ctx, KindToken, StateNameUninitialized, EventLock)
	require.NoError(t, err)
	assert.Equal(t, StateNameFunded, state)

	state, err = transition(ctx, KindToken, state, EventWithdraw)
	require.NoError(t, err)
	assert.Equal(t, StateNameWithdrawn, state)
}

func TestLifecycle_Rejected(t *testing.T) {
	tests := []struct {
		kind  AssetKind
		from  string
		event string
	}{
		{KindNative, StateNameRegistered, EventWithdraw},
		{KindNative, StateNameFunded, EventFund},
		{KindNative, StateNameFunded, EventCancel},
		{KindNative, StateNameUninitialized, EventLock},
		{KindNative, StateNameWithdrawn, EventWithdraw},
		{KindToken, StateNameUninitialized, EventRegister},
		{KindToken, StateNameFunded, EventFund},
		{KindToken, StateNameFunded, EventCancel},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.from+"/"+tt.event, func(t *testing.T) {
			_, err := transition(context.Background(), tt.kind, tt.from, tt.event)
			requireCode(t, err, ErrCodeInvalidLockState)
		})
	}
}

func TestTransitionStored(t *testing.T) {
	ctx := context.Background()

	s, err := transitionStored(ctx, KindNative, StateNameRegistered, EventFund)
	require.NoError(t, err)
	assert.Equal(t, StateFunded, s)

	s, err = transitionStored(ctx, KindToken, StateNameUninitialized, EventLock)
	require.NoError(t, err)
	assert.Equal(t, StateFunded, s)

	_, err = transitionStored(ctx, KindNative, StateNameFunded, EventWithdraw)
	requireCode(t, err, ErrCodeInvalidLockState)

	_, err = transitionStored(ctx, KindToken, StateNameFunded, EventFund)
	requireCode(t, err, ErrCodeInvalidLockState)
}

func TestPersistedState(t *testing.T) {
	s, ok := persistedState(StateNameRegistered)
	assert.True(t, ok)
	assert.Equal(t, StateRegistered, s)

	s, ok = persistedState(StateNameFunded)
	assert.True(t, ok)
	assert.Equal(t, StateFunded, s)

	_, ok = persistedState(StateNameWithdrawn)
	assert.False(t, ok)
}
