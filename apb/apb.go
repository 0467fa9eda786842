// Package apb models an APB3 master that writes configuration registers of a
// slave, paced by a bus clock.
package apb

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

// Errors of a transfer.
var (
	ErrTimeout    = errors.New("apb: PREADY timeout")
	ErrSlaveError = errors.New("apb: PSLVERR")
)

// NeverReady is the wait state count of a slave that never asserts PREADY.
const NeverReady = ^uint64(0)

// Hook positions. The hook item is the *Master.
var (
	// HookPosWrite is triggered when a write completes. The detail is a
	// WriteRecord.
	HookPosWrite = &hooking.HookPos{Name: "APBWrite"}

	// HookPosDelay is triggered when a delay completes. The detail is a
	// DelayRecord.
	HookPosDelay = &hooking.HookPos{Name: "APBDelay"}
)

// A Response is what a slave answers in the access phase.
type Response struct {
	// WaitStates is the number of cycles PREADY stays low.
	WaitStates uint64
	SlaveError bool
}

// A Slave receives register writes.
type Slave interface {
	Write(address, value uint32) Response
}

// SlaveFunc adapts a function to the Slave interface.
type SlaveFunc func(address, value uint32) Response

// Write calls f.
func (f SlaveFunc) Write(address, value uint32) Response {
	return f(address, value)
}

// A Waiter suspends the caller for clock cycles. *task.Proc is a Waiter.
type Waiter interface {
	Now() timing.VTime
	WaitCycles(clk *wire.Signal, n uint64) error
}

// WriteRecord describes a completed write.
type WriteRecord struct {
	Address uint32
	Value   uint32
	Start   timing.VTime
	End     timing.VTime
	Err     error
}

// DelayRecord describes a completed delay.
type DelayRecord struct {
	Cycles uint64
	Start  timing.VTime
	End    timing.VTime
}
