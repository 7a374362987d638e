// Package fsm defines the recognition session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateStopped   State = "stopped"
)

const (
	EventEnable  Event = "enable"
	EventStarted Event = "started"
	EventEnded   Event = "ended"
	EventFatal   Event = "fatal"
	EventDisable Event = "disable"
)

// Transition applies one event to the current state.
func Transition(current State, event Event) (State, error) {
	if event == EventFatal {
		return StateStopped, nil
	}

	switch current {
	case StateIdle, StateStopped:
		switch event {
		case EventEnable:
			return StateStarting, nil
		case EventDisable:
			return current, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventStarted:
			return StateListening, nil
		case EventEnded:
			return StateStarting, nil
		case EventDisable:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventEnded:
			return StateStarting, nil
		case EventDisable:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a state owns a live engine session.
func Active(state State) bool {
	return state == StateStarting || state == StateListening
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
