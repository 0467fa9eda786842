package timing

import (
	"github.com/sarchlab/sdramtester/sim/hooking"
)

// VTime is a point on the simulated timeline, counted in femtoseconds.
//
// Integer time keeps edge timestamps exact and runs reproducible; a
// femtosecond resolution makes a picosecond period divisible by eight.
type VTime uint64

// Units of VTime.
const (
	Femtosecond VTime = 1
	Picosecond        = 1000 * Femtosecond
	Nanosecond        = 1000 * Picosecond
	Microsecond       = 1000 * Nanosecond
)

// MaxVTime is the latest representable time.
const MaxVTime = ^VTime(0)

// PS converts a number of picoseconds to VTime.
func PS(ps uint64) VTime {
	return VTime(ps) * Picosecond
}

// InPS returns the time in picoseconds, rounded down.
func (t VTime) InPS() uint64 {
	return uint64(t / Picosecond)
}

// InSec returns the time in seconds.
func (t VTime) InSec() float64 {
	return float64(t) * 1e-15
}

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTime

	// Returns the handler that can should handle the event
	Handler() Handler

	// IsSecondary tells if the event is a secondary event. Secondary event are
	// handled after all same-time primary events are handled.
	IsSecondary() bool
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	time      VTime
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTime, handler Handler) *EventBase {
	e := new(EventBase)
	e.time = t
	e.handler = handler
	e.secondary = false

	return e
}

// NewSecondaryEventBase creates an EventBase that is handled after all the
// primary events of the same time.
func NewSecondaryEventBase(t VTime, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true

	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTime {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler defines a domain for the events.
//
// One event is always constraint to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
// An error returned by Handle halts the engine.
type Handler interface {
	Handle(e Event) error
}
