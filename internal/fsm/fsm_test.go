package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventEnable)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)

	next, err = Transition(next, EventStarted)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventEnded)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)

	next, err = Transition(next, EventStarted)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventDisable)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFatalFromAnyStateGoesStopped(t *testing.T) {
	states := []State{StateIdle, StateStarting, StateListening, StateStopped}
	for _, state := range states {
		next, err := Transition(state, EventFatal)
		require.NoError(t, err)
		require.Equal(t, StateStopped, next)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle disable stays idle", state: StateIdle, event: EventDisable, want: StateIdle},
		{name: "stopped disable stays stopped", state: StateStopped, event: EventDisable, want: StateStopped},
		{name: "stopped enable restarts", state: StateStopped, event: EventEnable, want: StateStarting},
		{name: "starting failure retries", state: StateStarting, event: EventEnded, want: StateStarting},
		{name: "starting disable", state: StateStarting, event: EventDisable, want: StateIdle},
		{name: "idle started invalid", state: StateIdle, event: EventStarted, want: StateIdle, wantErr: true},
		{name: "idle ended invalid", state: StateIdle, event: EventEnded, want: StateIdle, wantErr: true},
		{name: "starting enable invalid", state: StateStarting, event: EventEnable, want: StateStarting, wantErr: true},
		{name: "listening enable invalid", state: StateListening, event: EventEnable, want: StateListening, wantErr: true},
		{name: "listening started invalid", state: StateListening, event: EventStarted, want: StateListening, wantErr: true},
		{name: "stopped started invalid", state: StateStopped, event: EventStarted, want: StateStopped, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventEnable)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestActive(t *testing.T) {
	require.True(t, Active(StateStarting))
	require.True(t, Active(StateListening))
	require.False(t, Active(StateIdle))
	require.False(t, Active(StateStopped))
}
