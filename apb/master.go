package apb

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/wire"
)

// DefaultTimeout is the number of cycles a master waits for PREADY.
const DefaultTimeout uint64 = 16

// A Builder configures Masters.
type Builder struct {
	clk     *wire.Signal
	timeout uint64
}

// MakeBuilder returns a Builder with the default timeout.
func MakeBuilder() Builder {
	return Builder{timeout: DefaultTimeout}
}

// WithClock sets the bus clock.
func (b Builder) WithClock(clk *wire.Signal) Builder {
	b.clk = clk
	return b
}

// WithTimeout sets how many cycles the master waits for PREADY.
func (b Builder) WithTimeout(cycles uint64) Builder {
	b.timeout = cycles
	return b
}

// Build creates a master that suspends w while transferring to slave.
func (b Builder) Build(name string, w Waiter, slave Slave) *Master {
	if b.clk == nil {
		panic("apb: clock is not set")
	}

	return &Master{
		name:    name,
		clk:     b.clk,
		timeout: b.timeout,
		waiter:  w,
		slave:   slave,
	}
}

// A Master issues one transfer at a time.
type Master struct {
	hooking.HookableBase

	name    string
	clk     *wire.Signal
	timeout uint64
	waiter  Waiter
	slave   Slave

	numWrites uint64
}

// Name returns the name of the master.
func (m *Master) Name() string {
	return m.name
}

// NumWrites returns the number of completed writes.
func (m *Master) NumWrites() uint64 {
	return m.numWrites
}

// Write drives the setup phase on the next rising edge and the access phase
// on the one after. It returns when the slave asserts PREADY.
func (m *Master) Write(address, value uint32) error {
	rec := WriteRecord{
		Address: address,
		Value:   value,
		Start:   m.waiter.Now(),
	}

	rec.Err = m.transfer(address, value)
	rec.End = m.waiter.Now()

	if rec.Err == nil {
		m.numWrites++
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosWrite,
		Item:   m,
		Detail: rec,
	})

	return rec.Err
}

func (m *Master) transfer(address, value uint32) error {
	// Setup phase, then access phase.
	if err := m.waiter.WaitCycles(m.clk, 2); err != nil {
		return err
	}

	rsp := m.slave.Write(address, value)

	if rsp.WaitStates > m.timeout {
		if err := m.waiter.WaitCycles(m.clk, m.timeout); err != nil {
			return err
		}

		return errors.Wrapf(ErrTimeout, "%s: write 0x%03x after %d cycles",
			m.name, address, m.timeout)
	}

	if err := m.waiter.WaitCycles(m.clk, rsp.WaitStates); err != nil {
		return err
	}

	if rsp.SlaveError {
		return errors.Wrapf(ErrSlaveError, "%s: write 0x%03x=0x%x",
			m.name, address, value)
	}

	return nil
}

// Delay waits for n rising edges of the bus clock.
func (m *Master) Delay(cycles uint64) error {
	rec := DelayRecord{Cycles: cycles, Start: m.waiter.Now()}

	if err := m.waiter.WaitCycles(m.clk, cycles); err != nil {
		return err
	}

	rec.End = m.waiter.Now()

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosDelay,
		Item:   m,
		Detail: rec,
	})

	return nil
}
