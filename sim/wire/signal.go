// Package wire provides single-driver boolean signals that other parts of the
// simulation can observe and wait on.
package wire

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/hooking"
)

// ErrMultipleDrivers is returned when a second owner tries to drive a signal.
var ErrMultipleDrivers = errors.New("signal already has a driver")

// HookPosLevelChange is triggered every time the level of a signal changes.
// The hook item is the *Signal and the detail is a Transition.
var HookPosLevelChange = &hooking.HookPos{Name: "LevelChange"}

// Edge selects which transitions an observer is interested in.
type Edge int

// Edges of a signal.
const (
	Rising Edge = iota
	Falling
	AnyEdge
)

func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case AnyEdge:
		return "any"
	default:
		return fmt.Sprintf("Edge(%d)", int(e))
	}
}

// Transition describes a change of level.
type Transition struct {
	From, To bool
}

// Matches tells if the transition is an edge of the given kind.
func (t Transition) Matches(e Edge) bool {
	switch e {
	case Rising:
		return !t.From && t.To
	case Falling:
		return t.From && !t.To
	default:
		return t.From != t.To
	}
}

type edgeWatcher struct {
	edge Edge
	fn   func()
}

// A Signal is a boolean net. It can have at most one Driver. Readers can look
// at the level at any time or register one-shot edge callbacks.
type Signal struct {
	hooking.HookableBase

	name     string
	level    bool
	owner    string
	driven   bool
	watchers []edgeWatcher
}

// NewSignal creates a low, undriven signal.
func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Level returns the current level of the signal.
func (s *Signal) Level() bool {
	return s.level
}

// Owner returns the name of the driver, or "" if no one drives the signal.
func (s *Signal) Owner() string {
	return s.owner
}

// Claim makes owner the only writer of the signal.
func (s *Signal) Claim(owner string) (*Driver, error) {
	if s.driven {
		return nil, errors.Wrapf(ErrMultipleDrivers,
			"%s: driven by %s, claimed by %s", s.name, s.owner, owner)
	}

	s.driven = true
	s.owner = owner

	return &Driver{signal: s}, nil
}

// OnEdge registers fn to be called once, on the next edge of the given kind.
// The callback runs while the driver is still updating signals, so it should
// only schedule work rather than read other signals.
func (s *Signal) OnEdge(edge Edge, fn func()) {
	s.watchers = append(s.watchers, edgeWatcher{edge: edge, fn: fn})
}

func (s *Signal) set(level bool) {
	if level == s.level {
		return
	}

	t := Transition{From: s.level, To: level}
	s.level = level

	s.notifyWatchers(t)

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosLevelChange,
		Item:   s,
		Detail: t,
	})
}

func (s *Signal) notifyWatchers(t Transition) {
	if len(s.watchers) == 0 {
		return
	}

	pending := s.watchers
	s.watchers = nil

	for _, w := range pending {
		if t.Matches(w.edge) {
			w.fn()
			continue
		}

		s.watchers = append(s.watchers, w)
	}
}

// A Driver is the write handle of a Signal.
type Driver struct {
	signal *Signal
}

// Signal returns the driven signal.
func (d *Driver) Signal() *Signal {
	return d.signal
}

// Set changes the level. Setting the current level is not an edge.
func (d *Driver) Set(level bool) {
	d.signal.set(level)
}

// Toggle inverts the level.
func (d *Driver) Toggle() {
	d.signal.set(!d.signal.level)
}
