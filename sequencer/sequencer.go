// Package sequencer drives a device through a table of register writes.
//
// All operations block the calling task until the bus acknowledges them, so
// the writes reach the device in program order, one at a time.
package sequencer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/ddrinit"
)

// A RegisterBus can write configuration registers and wait for bus cycles.
type RegisterBus interface {
	Write(address, value uint32) error
	Delay(cycles uint64) error
}

// A StepError reports the step that failed. Nothing after it has been
// executed.
type StepError struct {
	Index int
	Step  ddrinit.Step
	// Settling is true if the write succeeded and the settle delay failed.
	Settling bool
	Err      error
}

func (e *StepError) Error() string {
	if e.Settling {
		return fmt.Sprintf("step %d, settle %d cycles after %s: %v",
			e.Index, e.Step.SettleCycles, e.Step, e.Err)
	}

	return fmt.Sprintf("step %d, %s: %v", e.Index, e.Step, e.Err)
}

// Unwrap returns the bus error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Cause returns the bus error.
func (e *StepError) Cause() error {
	return e.Err
}

// A Sequencer issues register writes and DRAM commands over a RegisterBus.
type Sequencer struct {
	bus RegisterBus
}

// New creates a Sequencer.
func New(bus RegisterBus) *Sequencer {
	return &Sequencer{bus: bus}
}

// Write writes one register. Failures are not retried.
func (s *Sequencer) Write(address, value uint32) error {
	return s.RunSteps([]ddrinit.Step{{Address: address, Value: value}})
}

// Delay waits for n bus cycles.
func (s *Sequencer) Delay(n uint64) error {
	if err := s.bus.Delay(n); err != nil {
		return errors.Wrapf(err, "delay %d cycles", n)
	}

	return nil
}

// Command issues a DRAM command: bank, address, opcode, then the trigger,
// followed by the command settle time.
func (s *Sequencer) Command(
	opcode ddrinit.Opcode,
	bank uint8,
	address uint32,
) error {
	return s.RunSteps(ddrinit.Expand(ddrinit.RegisterCommand{
		Opcode:  opcode,
		Bank:    bank,
		Address: address,
	}))
}

// RunSteps executes the steps in order and stops at the first failure.
func (s *Sequencer) RunSteps(steps []ddrinit.Step) error {
	for i, step := range steps {
		if err := s.bus.Write(step.Address, step.Value); err != nil {
			return &StepError{Index: i, Step: step, Err: err}
		}

		if step.SettleCycles == 0 {
			continue
		}

		if err := s.bus.Delay(step.SettleCycles); err != nil {
			return &StepError{Index: i, Step: step, Settling: true, Err: err}
		}
	}

	return nil
}

// RunScript issues the commands in order and stops at the first failure.
func (s *Sequencer) RunScript(script []ddrinit.RegisterCommand) error {
	for _, cmd := range script {
		if err := s.Command(cmd.Opcode, cmd.Bank, cmd.Address); err != nil {
			return errors.Wrapf(err, "command %s", cmd)
		}
	}

	return nil
}
