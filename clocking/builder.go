package clocking

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

// Defaults of the generator.
const (
	// DefaultWarmUp is the power-up settle time during which reset is held.
	// It does not depend on the clock period.
	DefaultWarmUp = 100_000_000 * timing.Picosecond

	// DefaultPostResetPeriods is the number of base periods between reset
	// release and the first clock edge.
	DefaultPostResetPeriods = 1

	// DefaultSamplingRatio is the number of sampling clock cycles per base
	// clock cycle.
	DefaultSamplingRatio = 2

	// DefaultPeriod is the base clock period.
	DefaultPeriod = 3300 * timing.Picosecond
)

// Configuration errors.
var (
	ErrInvalidPeriod = errors.New("clock period must be positive")
	ErrInvalidRatio  = errors.New("sampling ratio must be at least 1")
	ErrMissingSignal = errors.New("clock signal missing")
	ErrNoEngine      = errors.New("no engine")
)

// Signals are the nets the generator drives. Reset may be nil.
type Signals struct {
	Clk   *wire.Signal
	Clk0  *wire.Signal
	Clk90 *wire.Signal
	Reset *wire.Signal
}

// Builder can build clock generators.
type Builder struct {
	engine           timing.Engine
	period           timing.VTime
	warmUp           timing.VTime
	ratio            int
	postResetPeriods uint64
}

// MakeBuilder creates a builder with default configuration.
func MakeBuilder() Builder {
	return Builder{
		period:           DefaultPeriod,
		warmUp:           DefaultWarmUp,
		ratio:            DefaultSamplingRatio,
		postResetPeriods: DefaultPostResetPeriods,
	}
}

// WithEngine sets the engine that schedules the clock edges.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithPeriod sets the base clock period.
func (b Builder) WithPeriod(period timing.VTime) Builder {
	b.period = period
	return b
}

// WithWarmUp sets how long reset is held after power-up.
func (b Builder) WithWarmUp(warmUp timing.VTime) Builder {
	b.warmUp = warmUp
	return b
}

// WithSamplingRatio sets how many sampling clock cycles fit in one base
// clock cycle.
func (b Builder) WithSamplingRatio(ratio int) Builder {
	b.ratio = ratio
	return b
}

// WithPostResetPeriods sets how many base periods pass between reset release
// and the first clock edge.
func (b Builder) WithPostResetPeriods(n uint64) Builder {
	b.postResetPeriods = n
	return b
}

func (b Builder) validate(signals Signals) error {
	switch {
	case b.engine == nil:
		return ErrNoEngine
	case b.period == 0:
		return ErrInvalidPeriod
	case b.ratio < 1:
		return ErrInvalidRatio
	case signals.Clk == nil:
		return errors.Wrap(ErrMissingSignal, "clk")
	case signals.Clk0 == nil:
		return errors.Wrap(ErrMissingSignal, "clk0")
	case signals.Clk90 == nil:
		return errors.Wrap(ErrMissingSignal, "clk90")
	}

	return nil
}

// Build creates the generator and makes it the only driver of the signals.
func (b Builder) Build(name string, signals Signals) (*Generator, error) {
	if err := b.validate(signals); err != nil {
		return nil, errors.Wrap(err, name)
	}

	g := &Generator{
		name:             name,
		engine:           b.engine,
		period:           b.period,
		warmUp:           b.warmUp,
		postResetPeriods: b.postResetPeriods,
		wave:             Waveform(b.ratio),
	}

	var err error

	g.lines[BaseClock], err = signals.Clk.Claim(name)
	if err != nil {
		return nil, err
	}

	g.lines[SamplingClock0], err = signals.Clk0.Claim(name)
	if err != nil {
		return nil, err
	}

	g.lines[SamplingClock90], err = signals.Clk90.Claim(name)
	if err != nil {
		return nil, err
	}

	if signals.Reset != nil {
		g.reset, err = signals.Reset.Claim(name)
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}
