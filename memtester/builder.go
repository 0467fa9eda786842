package memtester

import (
	"math/rand"

	"github.com/sarchlab/sdramtester/bmb"
	"github.com/sarchlab/sdramtester/sim/id"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

// A Builder can build testers.
type Builder struct {
	engine       timing.Engine
	clk          *wire.Signal
	reset        *wire.Signal
	ports        []*bmb.Port
	memorySize   uint64
	outstanding  int
	dataWidth    int
	transactions uint64
	seed         int64
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		memorySize:   1 << 20,
		outstanding:  4,
		dataWidth:    32,
		transactions: 1000,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithClock sets the clock the tester issues requests on.
func (b Builder) WithClock(clk *wire.Signal) Builder {
	b.clk = clk
	return b
}

// WithReset sets the reset that holds the tester idle. It may be nil.
func (b Builder) WithReset(reset *wire.Signal) Builder {
	b.reset = reset
	return b
}

// WithPorts sets the memory ports to drive. The tester receives their
// responses.
func (b Builder) WithPorts(ports []*bmb.Port) Builder {
	b.ports = ports
	return b
}

// WithMemorySize sets the size of the address space to test.
func (b Builder) WithMemorySize(size uint64) Builder {
	b.memorySize = size
	return b
}

// WithOutstanding sets how many requests the tester keeps in flight on each
// port.
func (b Builder) WithOutstanding(n int) Builder {
	b.outstanding = n
	return b
}

// WithDataWidth sets the width of each access in bits.
func (b Builder) WithDataWidth(bits int) Builder {
	b.dataWidth = bits
	return b
}

// WithTransactions sets how many requests the tester issues before it stops
// the simulation.
func (b Builder) WithTransactions(n uint64) Builder {
	b.transactions = n
	return b
}

// WithSeed sets the seed of the random traffic.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// Build creates a tester. It does not run until SetRun(true).
func (b Builder) Build(name string) *Tester {
	if b.engine == nil || b.clk == nil {
		panic("memtester: engine and clock must be set")
	}

	wordBytes := uint64(b.dataWidth / 8)
	if wordBytes == 0 || b.memorySize < wordBytes {
		panic("memtester: memory size smaller than one word")
	}

	t := &Tester{
		name:        name,
		engine:      b.engine,
		clk:         b.clk,
		reset:       b.reset,
		ports:       b.ports,
		rand:        rand.New(rand.NewSource(b.seed)),
		reqs:        bmb.MakeReqBuilder(id.NewPrefixedIDGenerator(name)),
		wordBytes:   wordBytes,
		outstanding: b.outstanding,
		numWords:    b.memorySize / wordBytes,
		total:       b.transactions,
		known:       make(map[uint64][]byte),
		pending:     make(map[string]*pendingReq),
		busy:        make(map[uint64]bool),
	}

	for _, p := range b.ports {
		p.Connect(t)
	}

	return t
}
