// Package device is a behavioural model of a DDR3 memory controller. It
// checks the register-level bring-up it receives and, once the memory is
// initialized, serves memory requests from a sparse storage.
package device

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/sdramtester/apb"
	"github.com/sarchlab/sdramtester/bmb"
	"github.com/sarchlab/sdramtester/ddrinit"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/timing"
)

// NumModeRegisters is the number of DDR3 mode registers.
const NumModeRegisters = 4

// NumBanks is the number of banks a DDR3 command can address.
const NumBanks = 8

// HookPosCommand is triggered when the controller executes a command. The
// item is the *Controller and the detail is a CommandRecord.
var HookPosCommand = &hooking.HookPos{Name: "DRAMCommand"}

// A CommandRecord describes an executed command.
type CommandRecord struct {
	Time    timing.VTime
	Command ddrinit.RegisterCommand
}

// A Controller owns the configuration registers and the memory ports.
type Controller struct {
	hooking.HookableBase

	name       string
	engine     timing.Engine
	period     timing.VTime
	waitStates uint64
	storage    *Storage
	ports      []*bmb.Port

	PhaseCommand  uint32
	ResetReleased bool
	ClockEnabled  bool

	LatchedBank    uint32
	LatchedAddress uint32
	LatchedOpcode  uint32

	ModeRegisters  [NumModeRegisters]uint32
	ModeRegisterOK [NumModeRegisters]bool
	ZQCalibrated   bool
	CASLatency     int

	NumCommands     uint64
	NumSlaveErrors  uint64
	NumMemoryReads  uint64
	NumMemoryWrites uint64
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

// Storage returns the memory array.
func (c *Controller) Storage() *Storage {
	return c.storage
}

// Ports returns the memory-request ports.
func (c *Controller) Ports() []*bmb.Port {
	return c.ports
}

// Ready tells if the memory has been fully initialized and can serve
// requests.
func (c *Controller) Ready() bool {
	if !c.ResetReleased || !c.ClockEnabled || !c.ZQCalibrated {
		return false
	}

	for _, ok := range c.ModeRegisterOK {
		if !ok {
			return false
		}
	}

	return true
}

// Write is the register side of the controller.
func (c *Controller) Write(address, value uint32) apb.Response {
	ok := c.writeRegister(address, value)
	if !ok {
		c.NumSlaveErrors++
	}

	return apb.Response{WaitStates: c.waitStates, SlaveError: !ok}
}

func (c *Controller) writeRegister(address, value uint32) bool {
	switch address {
	case ddrinit.RegPhaseCommand:
		c.PhaseCommand = value
	case ddrinit.RegControl:
		return c.writeControl(value)
	case ddrinit.RegCommandBank:
		c.LatchedBank = value
	case ddrinit.RegCommandAddress:
		c.LatchedAddress = value
	case ddrinit.RegCommandOpcode:
		c.LatchedOpcode = value
	case ddrinit.RegCommandTrigger:
		return c.trigger()
	default:
		return false
	}

	return true
}

func (c *Controller) writeControl(value uint32) bool {
	reset := value&ddrinit.ControlResetRelease != 0
	cke := value&ddrinit.ControlClockEnable != 0

	if cke && !reset {
		return false
	}

	c.ResetReleased = reset
	c.ClockEnabled = cke

	return true
}

func (c *Controller) trigger() bool {
	if !c.ResetReleased || !c.ClockEnabled {
		return false
	}

	if c.LatchedBank >= NumBanks {
		return false
	}

	cmd := ddrinit.RegisterCommand{
		Opcode:  ddrinit.Opcode(c.LatchedOpcode),
		Bank:    uint8(c.LatchedBank),
		Address: c.LatchedAddress,
	}

	if !c.execute(cmd) {
		return false
	}

	c.NumCommands++
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosCommand,
		Item:   c,
		Detail: CommandRecord{Time: c.engine.Now(), Command: cmd},
	})

	return true
}

func (c *Controller) execute(cmd ddrinit.RegisterCommand) bool {
	switch cmd.Opcode {
	case ddrinit.MOD:
		return c.loadModeRegister(cmd.Bank, cmd.Address)
	case ddrinit.ZQCL:
		return c.calibrate()
	case ddrinit.PRE, ddrinit.REF:
		return true
	default:
		return false
	}
}

func (c *Controller) loadModeRegister(bank uint8, value uint32) bool {
	if int(bank) >= NumModeRegisters {
		return false
	}

	c.ModeRegisters[bank] = value
	c.ModeRegisterOK[bank] = true

	if bank == 0 {
		c.CASLatency = ddrinit.DecodeCASLatency(value)
	}

	return true
}

func (c *Controller) calibrate() bool {
	for _, ok := range c.ModeRegisterOK {
		if !ok {
			return false
		}
	}

	c.ZQCalibrated = true

	return true
}

type responseEvent struct {
	*timing.EventBase
	port *bmb.Port
	rsp  *bmb.Response
}

// Accept serves a memory request. The data is read or written right away and
// the response is delivered CL base clock periods later.
func (c *Controller) Accept(port *bmb.Port, req *bmb.Request) error {
	if !c.Ready() {
		return bmb.ErrNotReady
	}

	rsp := c.access(req)

	c.engine.Schedule(responseEvent{
		EventBase: timing.NewEventBase(c.engine.Now()+c.latency(), c),
		port:      port,
		rsp:       rsp,
	})

	return nil
}

func (c *Controller) access(req *bmb.Request) *bmb.Response {
	if req.Write {
		c.NumMemoryWrites++

		if err := c.storage.Write(req.Address, req.Data); err != nil {
			return bmb.MakeResponse(req, bmb.StatusError)
		}

		return bmb.MakeResponse(req, bmb.StatusOK)
	}

	c.NumMemoryReads++

	data, err := c.storage.Read(req.Address, req.Length)
	if err != nil {
		return bmb.MakeResponse(req, bmb.StatusError)
	}

	rsp := bmb.MakeResponse(req, bmb.StatusOK)
	rsp.Data = data

	return rsp
}

func (c *Controller) latency() timing.VTime {
	cl := c.CASLatency
	if cl < 1 {
		cl = 1
	}

	return timing.VTime(cl) * c.period
}

// Handle delivers responses.
func (c *Controller) Handle(e timing.Event) error {
	switch e := e.(type) {
	case responseEvent:
		e.port.Respond(e.rsp)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Controller) String() string {
	return fmt.Sprintf("%s(ready=%t, CL=%d)", c.name, c.Ready(), c.CASLatency)
}
