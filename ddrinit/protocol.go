// Package ddrinit describes the DDR3 initialization protocol as data: the
// register map of the controller, the command encodings, and the ordered
// tables of writes that bring the memory from power-on to ready.
package ddrinit

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/timing"
)

// Settle times, in bus clock cycles unless stated otherwise. They are device
// timing margins taken as given.
const (
	ControlSettleCycles     uint64 = 10
	CommandSettleCycles     uint64 = 10
	CalibrationSettleCycles uint64 = 1000

	// IdleTimer is how long the harness sleeps between checks once the
	// tester runs.
	IdleTimer = 0x1000000 * timing.Picosecond
)

// Mode register 0 fields.
const (
	MR0DLLReset    uint32 = 1 << 9
	MR0BasePattern uint32 = 0x100

	// ZQCalibrationAddress is the address driven with ZQCL; A10 high selects
	// the long calibration.
	ZQCalibrationAddress uint32 = 0x400

	MaxCASLatency = 15
)

// ErrInvalidCASLatency is returned for a CAS latency that does not fit the
// mode register field.
var ErrInvalidCASLatency = errors.New("invalid CAS latency")

// A RegisterCommand is one DRAM command issued through the controller's
// command registers.
type RegisterCommand struct {
	Opcode  Opcode
	Bank    uint8
	Address uint32
}

func (c RegisterCommand) String() string {
	return fmt.Sprintf("%s(bank%d,0x%x)", c.Opcode, c.Bank, c.Address)
}

// A Step is a register write followed by a settle time in bus cycles.
type Step struct {
	Address      uint32
	Value        uint32
	SettleCycles uint64
}

func (s Step) String() string {
	if s.SettleCycles == 0 {
		return fmt.Sprintf("write(0x%03x,0x%02x)", s.Address, s.Value)
	}

	return fmt.Sprintf("write(0x%03x,0x%02x)+%d",
		s.Address, s.Value, s.SettleCycles)
}

// ValidateCASLatency checks that cl can be encoded in mode register 0.
func ValidateCASLatency(cl int) error {
	if cl < 0 || cl > MaxCASLatency {
		return errors.Wrapf(ErrInvalidCASLatency, "CL=%d", cl)
	}

	return nil
}

// ModeRegister0 composes the value written to mode register 0. Bit 0 of the
// CAS latency goes to A2 and bits 3:1 to A6:A4.
func ModeRegister0(cl int, dllReset bool) (uint32, error) {
	if err := ValidateCASLatency(cl); err != nil {
		return 0, err
	}

	v := MR0BasePattern
	if dllReset {
		v |= MR0DLLReset
	}

	latency := uint32(cl)
	v |= (latency & 1) << 2
	v |= (latency & 0xE) << 3

	return v, nil
}

// DecodeCASLatency extracts the CAS latency from a mode register 0 value.
func DecodeCASLatency(mr0 uint32) int {
	return int((mr0>>2)&1 | (mr0>>3)&0xE)
}

// ResetReleaseSteps clears the phase command, holds the memory in reset and
// then releases it.
func ResetReleaseSteps() []Step {
	return []Step{
		{Address: RegPhaseCommand, Value: 0x00},
		{Address: RegControl, Value: 0x00, SettleCycles: ControlSettleCycles},
		{
			Address:      RegControl,
			Value:        ControlResetRelease,
			SettleCycles: ControlSettleCycles,
		},
	}
}

// ClockEnableSteps asserts CKE while keeping reset released.
func ClockEnableSteps() []Step {
	return []Step{
		{
			Address:      RegControl,
			Value:        ControlResetRelease | ControlClockEnable,
			SettleCycles: ControlSettleCycles,
		},
	}
}

// ModeRegisterScript programs MR2, MR3, MR1 and finally MR0 with DLL reset
// and the CAS latency.
func ModeRegisterScript(cl int) ([]RegisterCommand, error) {
	mr0, err := ModeRegister0(cl, true)
	if err != nil {
		return nil, err
	}

	return []RegisterCommand{
		{Opcode: MOD, Bank: 2, Address: 0},
		{Opcode: MOD, Bank: 3, Address: 0},
		{Opcode: MOD, Bank: 1, Address: 0},
		{Opcode: MOD, Bank: 0, Address: mr0},
	}, nil
}

// CalibrationScript issues the long ZQ calibration.
func CalibrationScript() []RegisterCommand {
	return []RegisterCommand{
		{Opcode: ZQCL, Bank: 0, Address: ZQCalibrationAddress},
	}
}

// Script returns the whole command sequence: mode registers, then
// calibration.
func Script(cl int) ([]RegisterCommand, error) {
	mrs, err := ModeRegisterScript(cl)
	if err != nil {
		return nil, err
	}

	return append(mrs, CalibrationScript()...), nil
}

// Expand returns the register writes that issue a command. The trigger write
// comes last because the controller samples bank, address and opcode when it
// is triggered. Only the trigger carries the settle time.
func Expand(cmd RegisterCommand) []Step {
	return []Step{
		{Address: RegCommandBank, Value: uint32(cmd.Bank)},
		{Address: RegCommandAddress, Value: cmd.Address},
		{Address: RegCommandOpcode, Value: uint32(cmd.Opcode)},
		{
			Address:      RegCommandTrigger,
			Value:        0,
			SettleCycles: CommandSettleCycles,
		},
	}
}
