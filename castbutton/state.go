package castbutton

import (
	"errors"
	"fmt"
	"slices"
)

// State of the casting session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateRequesting
	StateCasting
	StateStopping
	StateError
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateInitializing:  "initializing",
	StateReady:         "ready",
	StateRequesting:    "requesting",
	StateCasting:       "casting",
	StateStopping:      "stopping",
	StateError:         "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// inFlight states wait for an SDK answer; the control is inert meanwhile.
func (s State) inFlight() bool {
	return s == StateInitializing || s == StateRequesting || s == StateStopping
}

// ErrInvalidTransition is returned when a move is not in the transition table.
var ErrInvalidTransition = errors.New("castbutton: invalid state transition")

var transitions = map[State][]State{
	StateUninitialized: {StateInitializing},
	// casting straight from initializing happens when the SDK rejoins a
	// session before Initialize returns.
	StateInitializing: {StateReady, StateUninitialized, StateCasting},
	StateReady:        {StateRequesting, StateCasting},
	StateRequesting:   {StateCasting, StateError, StateReady},
	StateCasting:      {StateStopping, StateError, StateReady},
	StateStopping:     {StateReady, StateError, StateCasting},
	StateError:        {StateRequesting, StateStopping, StateCasting, StateReady},
}

// next validates from → to and returns to. Staying put is always allowed.
func next(from, to State) (State, error) {
	if from == to || slices.Contains(transitions[from], to) {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
