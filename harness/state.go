package harness

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/hooking"
)

// ErrIllegalTransition is returned when the bring-up tries to skip or revisit
// a state.
var ErrIllegalTransition = errors.New("illegal state transition")

// HookPosStateChange is triggered when the bring-up enters a new state. The
// item is the *Harness and the detail is a StateChange.
var HookPosStateChange = &hooking.HookPos{Name: "StateChange"}

// State is the progress of the bring-up.
type State int

// States of the bring-up, in the only order they can be visited.
const (
	Idle State = iota
	ClocksStarted
	ResetReleased
	ClockEnabled
	ModeRegistersProgrammed
	Calibrated
	TesterActive
)

var stateNames = []string{
	"Idle",
	"ClocksStarted",
	"ResetReleased",
	"ClockEnabled",
	"ModeRegistersProgrammed",
	"Calibrated",
	"TesterActive",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// Next returns the only state that may follow s. The last state has no
// successor.
func (s State) Next() (State, bool) {
	if s < Idle || s >= TesterActive {
		return s, false
	}

	return s + 1, true
}

// StateChange is the detail of HookPosStateChange.
type StateChange struct {
	From, To State
}

func (c StateChange) String() string {
	return c.From.String() + " -> " + c.To.String()
}

// stateMachine only moves forward, one state at a time.
type stateMachine struct {
	state State
}

func (m *stateMachine) advance(to State) (StateChange, error) {
	next, ok := m.state.Next()
	if !ok || next != to {
		return StateChange{}, errors.Wrapf(ErrIllegalTransition,
			"%s -> %s", m.state, to)
	}

	change := StateChange{From: m.state, To: to}
	m.state = to

	return change, nil
}
