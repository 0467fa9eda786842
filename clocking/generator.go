// Package clocking generates the phase-locked clocks and the power-on reset
// of the simulated device.
package clocking

import (
	"log"
	"reflect"

	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

type powerUpEvent struct {
	*timing.EventBase
}

type releaseResetEvent struct {
	*timing.EventBase
}

type stepEvent struct {
	*timing.EventBase
	cycle uint64
	step  int
}

// A Generator drives a base clock, two quadrature sampling clocks and an
// optional reset. Once started it never stops; it goes away with the
// simulation.
type Generator struct {
	name   string
	engine timing.Engine

	period           timing.VTime
	warmUp           timing.VTime
	postResetPeriods uint64
	wave             []Step

	lines [3]*wire.Driver
	reset *wire.Driver

	started    bool
	clockStart timing.VTime
}

// Name returns the name of the generator.
func (g *Generator) Name() string {
	return g.name
}

// Period returns the base clock period.
func (g *Generator) Period() timing.VTime {
	return g.period
}

// QuarterStep returns the time between two consecutive sampling clock
// changes.
func (g *Generator) QuarterStep() timing.VTime {
	return g.period / timing.VTime(len(g.wave))
}

// ClockStart returns the time of the first clock edge. It is only known once
// reset has been released.
func (g *Generator) ClockStart() timing.VTime {
	return g.clockStart
}

// Start schedules power-up at the current time. Calling Start twice has no
// effect.
func (g *Generator) Start() {
	if g.started {
		return
	}

	g.started = true
	g.engine.Schedule(powerUpEvent{timing.NewEventBase(g.engine.Now(), g)})
}

// Handle advances the waveform.
func (g *Generator) Handle(e timing.Event) error {
	switch e := e.(type) {
	case powerUpEvent:
		g.powerUp(e.Time())
	case releaseResetEvent:
		g.releaseReset(e.Time())
	case stepEvent:
		g.applyStep(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (g *Generator) powerUp(now timing.VTime) {
	if g.reset != nil {
		g.reset.Set(true)
	}

	for _, l := range g.lines {
		l.Set(false)
	}

	g.engine.Schedule(releaseResetEvent{
		timing.NewEventBase(now+g.warmUp, g),
	})
}

func (g *Generator) releaseReset(now timing.VTime) {
	if g.reset != nil {
		g.reset.Set(false)
	}

	g.clockStart = now + timing.VTime(g.postResetPeriods)*g.period
	g.scheduleStep(0, 0)
}

func (g *Generator) applyStep(e stepEvent) {
	for _, c := range g.wave[e.step] {
		g.lines[c.Line].Set(c.Level)
	}

	cycle, step := e.cycle, e.step+1
	if step == len(g.wave) {
		cycle, step = cycle+1, 0
	}

	g.scheduleStep(cycle, step)
}

func (g *Generator) scheduleStep(cycle uint64, step int) {
	steps := timing.VTime(len(g.wave))
	offset := timing.VTime(step) * g.period / steps
	t := g.clockStart + timing.VTime(cycle)*g.period + offset

	g.engine.Schedule(stepEvent{
		EventBase: timing.NewEventBase(t, g),
		cycle:     cycle,
		step:      step,
	})
}
