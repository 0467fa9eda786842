// Package harness brings a simulated DDR3 controller out of reset, programs
// it through its register bus and then hands it to a random memory tester.
package harness

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/apb"
	"github.com/sarchlab/sdramtester/clocking"
	"github.com/sarchlab/sdramtester/datarecording"
	"github.com/sarchlab/sdramtester/ddrinit"
	"github.com/sarchlab/sdramtester/device"
	"github.com/sarchlab/sdramtester/memtester"
	"github.com/sarchlab/sdramtester/monitoring"
	"github.com/sarchlab/sdramtester/sequencer"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/task"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/tracing"
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("harness has already run")

// A Harness owns one simulation: the engine, the clocks, the device, the
// register bus and the memory tester.
type Harness struct {
	hooking.HookableBase

	name   string
	runID  string
	config Config
	logger *log.Logger

	engine    *timing.SerialEngine
	signals   clocking.Signals
	generator *clocking.Generator
	device    *device.Controller
	registers apb.Slave
	tester    *memtester.Tester
	bus       *apb.Master
	busHooks  []hooking.Hook

	modeRegisterScript []ddrinit.RegisterCommand

	speedPrinter *monitoring.SpeedPrinter
	monitor      *monitoring.Monitor
	progress     *monitoring.ProgressBar
	recorder     datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	dbTracer     *tracing.DBTracer

	// lock guards the fields Run changes outside of event handling. Changes
	// made by handlers and tasks are guarded by pausing the engine.
	lock sync.Mutex
	sm   stateMachine
	ran  bool
	err  error
}

// Name returns the name of the harness.
func (h *Harness) Name() string {
	return h.name
}

// RunID returns the unique identifier of this run.
func (h *Harness) RunID() string {
	return h.runID
}

// Config returns the configuration the harness was built with.
func (h *Harness) Config() Config {
	return h.config
}

// State returns the current bring-up state.
func (h *Harness) State() State {
	return h.sm.state
}

// Err returns the error Run returned.
func (h *Harness) Err() error {
	return h.err
}

// Engine returns the engine that drives the simulation.
func (h *Harness) Engine() timing.Engine {
	return h.engine
}

// Generator returns the clock generator.
func (h *Harness) Generator() *clocking.Generator {
	return h.generator
}

// Signals returns the clock and reset nets.
func (h *Harness) Signals() clocking.Signals {
	return h.signals
}

// Device returns the simulated controller.
func (h *Harness) Device() *device.Controller {
	return h.device
}

// Tester returns the memory tester.
func (h *Harness) Tester() *memtester.Tester {
	return h.tester
}

// Bus returns the register bus master. It is nil until the bring-up task has
// started.
func (h *Harness) Bus() *apb.Master {
	return h.bus
}

// Status is a summary of the run, served by the monitor.
type Status struct {
	RunID         string `json:"run_id"`
	State         string `json:"state"`
	NowPS         uint64 `json:"now_ps"`
	NumWrites     uint64 `json:"num_writes"`
	DeviceReady   bool   `json:"device_ready"`
	TesterRunning bool   `json:"tester_running"`
	Issued        uint64 `json:"issued"`
	Finished      uint64 `json:"finished"`
	Total         uint64 `json:"total"`
	Mismatches    uint64 `json:"mismatches"`
}

// Status returns a summary of the run. While Run is in progress, the caller
// must pause the engine first.
func (h *Harness) Status() Status {
	h.lock.Lock()
	defer h.lock.Unlock()

	s := Status{
		RunID:         h.runID,
		State:         h.sm.state.String(),
		NowPS:         h.engine.Now().InPS(),
		DeviceReady:   h.device.Ready(),
		TesterRunning: h.tester.IsRun(),
		Issued:        h.tester.Issued(),
		Finished:      h.tester.Finished(),
		Total:         h.tester.Total(),
		Mismatches:    h.tester.NumMismatches,
	}

	if h.bus != nil {
		s.NumWrites = h.bus.NumWrites()
	}

	return s
}

// Run starts the clocks, brings the controller up and lets the tester run.
// It returns when the tester has completed its transactions, when the first
// failure happens or when the time limit is reached.
func (h *Harness) Run() error {
	h.lock.Lock()

	if h.ran {
		h.lock.Unlock()
		return ErrAlreadyRun
	}

	h.ran = true

	err := h.prepare()

	h.lock.Unlock()

	if err == nil {
		err = h.engine.RunUntil(h.config.MaxTime)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if err == nil {
		err = h.outcome()
	}

	h.engine.Finished()

	h.err = h.finish(err)

	return h.err
}

func (h *Harness) prepare() error {
	if h.execRecorder != nil {
		h.recordConfig()
	}

	h.generator.Start()

	if err := h.advance(ClocksStarted); err != nil {
		return err
	}

	if h.speedPrinter != nil {
		h.speedPrinter.Start()
	}

	h.tester.Start()
	task.Spawn(h.engine, h.name+".BringUp", h.bringUp)

	return nil
}

func (h *Harness) outcome() error {
	if err := h.tester.Err(); err != nil {
		return err
	}

	if h.tester.IsRun() && h.tester.Done() {
		return nil
	}

	return errors.Wrapf(ErrTimeLimit, "%d ps in state %s",
		h.engine.Now().InPS(), h.sm.state)
}

func (h *Harness) bringUp(p *task.Proc) error {
	h.bus = apb.MakeBuilder().
		WithClock(h.signals.Clk).
		WithTimeout(h.config.BusTimeout).
		Build(h.name+".APB", p, h.registers)

	for _, hook := range h.busHooks {
		h.bus.AcceptHook(hook)
	}

	seq := sequencer.New(h.bus)

	phases := []struct {
		to  State
		run func() error
	}{
		{ResetReleased, func() error {
			return seq.RunSteps(ddrinit.ResetReleaseSteps())
		}},
		{ClockEnabled, func() error {
			return seq.RunSteps(ddrinit.ClockEnableSteps())
		}},
		{ModeRegistersProgrammed, func() error {
			return seq.RunScript(h.modeRegisterScript)
		}},
		{Calibrated, func() error {
			return seq.RunScript(ddrinit.CalibrationScript())
		}},
	}

	for _, phase := range phases {
		if err := phase.run(); err != nil {
			return h.bringUpFailure(err)
		}

		if err := h.advance(phase.to); err != nil {
			return err
		}
	}

	if err := seq.Delay(ddrinit.CalibrationSettleCycles); err != nil {
		return h.bringUpFailure(err)
	}

	h.tester.SetRun(true)

	if err := h.advance(TesterActive); err != nil {
		return err
	}

	for {
		if err := p.Wait(ddrinit.IdleTimer); err != nil {
			return err
		}
	}
}

func (h *Harness) bringUpFailure(err error) error {
	if errors.Is(err, task.ErrKilled) {
		return err
	}

	h.logger.Printf("%d ps, %s, bring-up failed in state %s: %v",
		h.engine.Now().InPS(), h.name, h.sm.state, err)

	return errors.Wrapf(err, "bring-up failed in state %s", h.sm.state)
}

func (h *Harness) advance(to State) error {
	change, err := h.sm.advance(to)
	if err != nil {
		return err
	}

	h.logger.Printf("%d ps, %s, %s", h.engine.Now().InPS(), h.name, change)

	h.InvokeHook(hooking.HookCtx{
		Domain: h,
		Pos:    HookPosStateChange,
		Item:   h,
		Detail: change,
	})

	return nil
}

func (h *Harness) finish(err error) error {
	if h.progress != nil {
		h.monitor.CompleteProgressBar(h.progress)
	}

	if h.dbTracer != nil && err == nil {
		err = h.dbTracer.Err()
	}

	if h.execRecorder != nil {
		status := "OK"
		if err != nil {
			status = err.Error()
		}

		h.execRecorder.Add("Final State", h.sm.state.String())
		h.execRecorder.Add("Simulated Time (ps)",
			strconv.FormatUint(h.engine.Now().InPS(), 10))
		h.execRecorder.Add("Result", status)

		if endErr := h.execRecorder.End(); endErr != nil && err == nil {
			err = errors.Wrap(endErr, "record run")
		}
	}

	return err
}

func (h *Harness) attachRecorder() error {
	dbTracer, err := tracing.NewDBTracer(h.engine, h.recorder)
	if err != nil {
		return err
	}

	execRecorder, err := datarecording.NewExecRecorder(h.recorder)
	if err != nil {
		return errors.Wrap(err, "create exec_info")
	}

	h.dbTracer = dbTracer
	h.execRecorder = execRecorder

	tracing.CollectTrace(dbTracer, h, h.device, h.tester)
	h.busHooks = append(h.busHooks, dbTracer)

	return nil
}

func (h *Harness) recordConfig() {
	c := h.config

	h.execRecorder.Start()
	h.execRecorder.Add("Run ID", h.runID)
	h.execRecorder.Add("Seed", strconv.FormatInt(c.Seed, 10))
	h.execRecorder.Add("Period (ps)", strconv.FormatUint(c.Period.InPS(), 10))
	h.execRecorder.Add("CAS Latency", strconv.Itoa(c.CASLatency))
	h.execRecorder.Add("Ports", strconv.Itoa(c.NumPorts))
	h.execRecorder.Add("Memory Size", strconv.FormatUint(c.MemorySize, 10))
	h.execRecorder.Add("Data Width", strconv.Itoa(c.DataWidth))
	h.execRecorder.Add("Transactions", strconv.FormatUint(c.Transactions, 10))
	h.execRecorder.Add("Sampling Ratio", strconv.Itoa(c.SamplingRatio))
}

func (h *Harness) attachMonitor() {
	h.monitor.RegisterEngine(h.engine)
	h.monitor.RegisterComponent(h.generator)
	h.monitor.RegisterComponent(h.device)
	h.monitor.RegisterComponent(h.tester)
	h.monitor.RegisterStatus(func() any { return h.Status() })

	h.progress = h.monitor.CreateProgressBar(
		fmt.Sprintf("%s transactions", h.name), h.config.Transactions)

	progress := h.progress
	h.tester.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos == memtester.HookPosTransaction {
			progress.IncrementFinished(1)
		}
	}))
}
