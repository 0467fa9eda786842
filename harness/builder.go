package harness

import (
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/apb"
	"github.com/sarchlab/sdramtester/clocking"
	"github.com/sarchlab/sdramtester/datarecording"
	"github.com/sarchlab/sdramtester/ddrinit"
	"github.com/sarchlab/sdramtester/device"
	"github.com/sarchlab/sdramtester/memtester"
	"github.com/sarchlab/sdramtester/monitoring"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/id"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
	"github.com/sarchlab/sdramtester/tracing"
)

// Builder can be used to build a harness.
type Builder struct {
	config        Config
	logger        *log.Logger
	recorder      datarecording.DataRecorder
	monitor       *monitoring.Monitor
	registerSlave apb.Slave
	speedPrinter  bool
	busLog        bool
	eventLog      bool
	busHooks      []hooking.Hook
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config:       DefaultConfig(),
		speedPrinter: true,
	}
}

// WithConfig replaces the whole configuration.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithSeed sets the seed of the memory tester.
func (b Builder) WithSeed(seed int64) Builder {
	b.config.Seed = seed
	return b
}

// WithPeriod sets the base clock period in picoseconds.
func (b Builder) WithPeriod(ps uint64) Builder {
	b.config.Period = timing.PS(ps)
	return b
}

// WithCASLatency sets the CAS latency programmed into MR0.
func (b Builder) WithCASLatency(cl int) Builder {
	b.config.CASLatency = cl
	return b
}

// WithNumPorts sets the number of memory-request ports.
func (b Builder) WithNumPorts(n int) Builder {
	b.config.NumPorts = n
	return b
}

// WithMemorySize sets the tested address space in bytes.
func (b Builder) WithMemorySize(size uint64) Builder {
	b.config.MemorySize = size
	return b
}

// WithOutstanding sets the in-flight requests allowed per port.
func (b Builder) WithOutstanding(n int) Builder {
	b.config.Outstanding = n
	return b
}

// WithDataWidth sets the width of a memory word in bits.
func (b Builder) WithDataWidth(bits int) Builder {
	b.config.DataWidth = bits
	return b
}

// WithTransactions sets how many requests the tester completes before the
// run ends.
func (b Builder) WithTransactions(n uint64) Builder {
	b.config.Transactions = n
	return b
}

// WithMaxTime bounds the simulated time of the run.
func (b Builder) WithMaxTime(t timing.VTime) Builder {
	b.config.MaxTime = t
	return b
}

// WithSamplingRatio sets how many sampling clock cycles fit in a base cycle.
func (b Builder) WithSamplingRatio(ratio int) Builder {
	b.config.SamplingRatio = ratio
	return b
}

// WithPostResetPeriods sets the number of base periods between reset release
// and the first clock edge.
func (b Builder) WithPostResetPeriods(n uint64) Builder {
	b.config.PostResetPeriods = n
	return b
}

// WithWarmUp sets how long reset is held after power-up.
func (b Builder) WithWarmUp(t timing.VTime) Builder {
	b.config.WarmUp = t
	return b
}

// WithBusTimeout sets how many cycles the register bus waits for PREADY.
func (b Builder) WithBusTimeout(cycles uint64) Builder {
	b.config.BusTimeout = cycles
	return b
}

// WithLogger sets the logger of state transitions and, if enabled, of the
// bus and event logs.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithDataRecorder records the bring-up trace and the run properties.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithMonitor registers the simulation with a monitor.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithRegisterSlave puts s on the register bus instead of the controller.
func (b Builder) WithRegisterSlave(s apb.Slave) Builder {
	b.registerSlave = s
	return b
}

// WithoutSpeedPrinter disables the speed report.
func (b Builder) WithoutSpeedPrinter() Builder {
	b.speedPrinter = false
	return b
}

// WithBusLog prints every register write, command and transaction.
func (b Builder) WithBusLog() Builder {
	b.busLog = true
	return b
}

// WithEventLog prints every event the engine handles.
func (b Builder) WithEventLog() Builder {
	b.eventLog = true
	return b
}

// WithBusHook attaches a hook to the register bus master.
func (b Builder) WithBusHook(h hooking.Hook) Builder {
	b.busHooks = append(b.busHooks[:len(b.busHooks):len(b.busHooks)], h)
	return b
}

// Build validates the configuration and wires the simulation.
func (b Builder) Build(name string) (*Harness, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	modeRegisterScript, err := ddrinit.ModeRegisterScript(b.config.CASLatency)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	h := &Harness{
		name:               name,
		runID:              id.NewUniqueIDGenerator().Generate(),
		config:             b.config,
		logger:             b.logger,
		engine:             timing.NewSerialEngine(),
		modeRegisterScript: modeRegisterScript,
		busHooks:           b.busHooks,
		recorder:           b.recorder,
		monitor:            b.monitor,
	}

	if h.logger == nil {
		h.logger = log.New(os.Stderr, "", 0)
	}

	if err := b.buildClocks(h); err != nil {
		return nil, err
	}

	b.buildDevice(h)
	b.buildTester(h)

	if b.speedPrinter {
		h.speedPrinter = monitoring.NewSpeedPrinter(
			h.engine, h.logger, monitoring.DefaultSpeedInterval)
	}

	if err := b.attachObservers(h); err != nil {
		return nil, err
	}

	return h, nil
}

func (b Builder) buildClocks(h *Harness) error {
	h.signals = clocking.Signals{
		Clk:   wire.NewSignal(h.name + ".Clk"),
		Clk0:  wire.NewSignal(h.name + ".SerdesClk0"),
		Clk90: wire.NewSignal(h.name + ".SerdesClk90"),
		Reset: wire.NewSignal(h.name + ".Reset"),
	}

	generator, err := clocking.MakeBuilder().
		WithEngine(h.engine).
		WithPeriod(b.config.Period).
		WithWarmUp(b.config.WarmUp).
		WithSamplingRatio(b.config.SamplingRatio).
		WithPostResetPeriods(b.config.PostResetPeriods).
		Build(h.name+".ClockGen", h.signals)
	if err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}

	h.generator = generator

	return nil
}

func (b Builder) buildDevice(h *Harness) {
	h.device = device.MakeBuilder().
		WithEngine(h.engine).
		WithPeriod(b.config.Period).
		WithNumPorts(b.config.NumPorts).
		WithMemorySize(b.config.MemorySize).
		WithOutstanding(b.config.Outstanding).
		Build(h.name + ".DRAM")

	h.registers = h.device
	if b.registerSlave != nil {
		h.registers = b.registerSlave
	}
}

func (b Builder) buildTester(h *Harness) {
	h.tester = memtester.MakeBuilder().
		WithEngine(h.engine).
		WithClock(h.signals.Clk).
		WithReset(h.signals.Reset).
		WithPorts(h.device.Ports()).
		WithMemorySize(b.config.MemorySize).
		WithOutstanding(b.config.Outstanding).
		WithDataWidth(b.config.DataWidth).
		WithTransactions(b.config.Transactions).
		WithSeed(b.config.Seed).
		Build(h.name + ".Tester")
}

func (b Builder) attachObservers(h *Harness) error {
	if b.eventLog {
		h.engine.AcceptHook(timing.NewEventLogger(h.logger))
	}

	if b.busLog {
		logTracer := tracing.NewLogTracer(h.logger, h.engine)
		tracing.CollectTrace(logTracer, h.device, h.tester)
		h.busHooks = append(h.busHooks, logTracer)
	}

	if b.recorder != nil {
		if err := h.attachRecorder(); err != nil {
			return err
		}
	}

	if b.monitor != nil {
		h.attachMonitor()
	}

	return nil
}
