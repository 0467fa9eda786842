package device

import (
	"fmt"

	"github.com/sarchlab/sdramtester/bmb"
	"github.com/sarchlab/sdramtester/sim/timing"
)

// A Builder can build controllers.
type Builder struct {
	engine      timing.Engine
	period      timing.VTime
	numPorts    int
	memorySize  uint64
	outstanding int
	waitStates  uint64
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		period:      3300 * timing.Picosecond,
		numPorts:    1,
		memorySize:  1 << 20,
		outstanding: 8,
	}
}

// WithEngine sets the engine that delivers responses.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithPeriod sets the base clock period, the unit of the CAS latency.
func (b Builder) WithPeriod(period timing.VTime) Builder {
	b.period = period
	return b
}

// WithNumPorts sets the number of memory-request ports.
func (b Builder) WithNumPorts(n int) Builder {
	b.numPorts = n
	return b
}

// WithMemorySize sets the capacity of the memory in bytes.
func (b Builder) WithMemorySize(size uint64) Builder {
	b.memorySize = size
	return b
}

// WithOutstanding sets how many requests each port can hold in flight.
func (b Builder) WithOutstanding(n int) Builder {
	b.outstanding = n
	return b
}

// WithRegisterWaitStates sets how long PREADY stays low on register writes.
func (b Builder) WithRegisterWaitStates(n uint64) Builder {
	b.waitStates = n
	return b
}

// Build creates a controller.
func (b Builder) Build(name string) *Controller {
	if b.engine == nil {
		panic("device: engine is not set")
	}

	c := &Controller{
		name:       name,
		engine:     b.engine,
		period:     b.period,
		waitStates: b.waitStates,
		storage:    NewStorage(b.memorySize),
	}

	for i := 0; i < b.numPorts; i++ {
		portName := fmt.Sprintf("%s.Port%d", name, i)
		c.ports = append(c.ports, bmb.NewPort(portName, i, b.outstanding, c))
	}

	return c
}
