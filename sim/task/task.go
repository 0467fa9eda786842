// Package task runs sequential code on the simulated timeline.
//
// A Proc is a goroutine that only executes while the engine has handed control
// to it. Whenever the body waits, control goes back to the engine, so at most
// one piece of simulation code runs at any moment and the run stays
// deterministic.
package task

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

// ErrKilled is returned by the wait functions once the simulation has been
// torn down. Bodies should return when they see it.
var ErrKilled = errors.New("task killed")

// Body is the code a Proc runs.
type Body func(p *Proc) error

type wakeEvent struct {
	*timing.EventBase
	epoch uint64
}

type result struct {
	done     bool
	err      error
	panicVal any
}

// A Proc is a cooperative task.
type Proc struct {
	name   string
	engine timing.Engine
	body   Body

	resume chan struct{}
	yield  chan result

	epoch    uint64
	started  bool
	finished bool
	killed   bool
	err      error
}

// Spawn creates a task that starts at the current simulated time. The task is
// killed when the engine's Finished is called.
func Spawn(engine timing.Engine, name string, body Body) *Proc {
	p := &Proc{
		name:   name,
		engine: engine,
		body:   body,
		resume: make(chan struct{}),
		yield:  make(chan result, 1),
	}

	engine.Schedule(wakeEvent{
		EventBase: timing.NewEventBase(engine.Now(), p),
		epoch:     p.epoch,
	})
	engine.RegisterSimulationEndHandler(killer{p})

	return p
}

// Name returns the name of the task.
func (p *Proc) Name() string {
	return p.name
}

// Now returns the current simulated time.
func (p *Proc) Now() timing.VTime {
	return p.engine.Now()
}

// Finished tells if the body has returned.
func (p *Proc) Finished() bool {
	return p.finished
}

// Err returns the error the body returned, if any.
func (p *Proc) Err() error {
	return p.err
}

// Handle resumes the task. It returns once the task waits again or ends.
func (p *Proc) Handle(e timing.Event) error {
	evt := e.(wakeEvent)
	if p.finished || p.killed || evt.epoch != p.epoch {
		return nil
	}

	if !p.started {
		p.started = true
		go p.run()
	} else {
		p.resume <- struct{}{}
	}

	r := <-p.yield
	if r.panicVal != nil {
		p.finished = true
		panic(r.panicVal)
	}

	if r.done {
		p.finished = true
		p.err = r.err

		return r.err
	}

	return nil
}

func (p *Proc) run() {
	var err error

	defer func() {
		if v := recover(); v != nil {
			p.yield <- result{done: true, panicVal: v}
			return
		}

		if errors.Is(err, ErrKilled) {
			err = nil
		}

		p.yield <- result{done: true, err: err}
	}()

	err = p.body(p)
}

// Wait suspends the task for d.
func (p *Proc) Wait(d timing.VTime) error {
	return p.WaitUntil(p.engine.Now() + d)
}

// WaitUntil suspends the task until time t. A time in the past resumes the
// task at the current time, after the events already scheduled for it.
func (p *Proc) WaitUntil(t timing.VTime) error {
	if p.killed {
		return ErrKilled
	}

	if now := p.engine.Now(); t < now {
		t = now
	}

	p.epoch++
	p.engine.Schedule(wakeEvent{
		EventBase: timing.NewEventBase(t, p),
		epoch:     p.epoch,
	})

	return p.suspend()
}

// WaitEdge suspends the task until the next edge of the given kind on sig.
// The task resumes after every primary event of that instant, so it sees the
// settled levels of all signals changed together with sig.
func (p *Proc) WaitEdge(sig *wire.Signal, edge wire.Edge) error {
	if p.killed {
		return ErrKilled
	}

	p.epoch++
	epoch := p.epoch

	sig.OnEdge(edge, func() {
		p.engine.Schedule(wakeEvent{
			EventBase: timing.NewSecondaryEventBase(p.engine.Now(), p),
			epoch:     epoch,
		})
	})

	return p.suspend()
}

// WaitCycles suspends the task for n rising edges of clk.
func (p *Proc) WaitCycles(clk *wire.Signal, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := p.WaitEdge(clk, wire.Rising); err != nil {
			return err
		}
	}

	return nil
}

func (p *Proc) suspend() error {
	p.yield <- result{}
	<-p.resume

	if p.killed {
		return ErrKilled
	}

	return nil
}

// Kill ends a suspended task. The waiting call returns ErrKilled and Kill
// returns after the body has returned.
func (p *Proc) Kill() {
	if p.killed {
		return
	}

	p.killed = true

	if !p.started || p.finished {
		return
	}

	close(p.resume)

	r := <-p.yield
	p.finished = true

	if r.panicVal != nil {
		panic(r.panicVal)
	}
}

type killer struct {
	p *Proc
}

func (k killer) Handle(timing.VTime) {
	k.p.Kill()
}
