package harness

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/apb"
	"github.com/sarchlab/sdramtester/clocking"
	"github.com/sarchlab/sdramtester/ddrinit"
	"github.com/sarchlab/sdramtester/sim/timing"
)

// ErrInvalidConfig is returned by Validate and Build.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrTimeLimit is returned by Run when the simulated time limit is reached
// before the tester finishes.
var ErrTimeLimit = errors.New("simulated time limit reached")

// DefaultMaxTime bounds a run when no limit is given.
const DefaultMaxTime = 10_000 * timing.Microsecond

// Config is everything that determines a run. Two runs with equal configs
// produce identical traces.
type Config struct {
	Seed             int64
	Period           timing.VTime
	CASLatency       int
	NumPorts         int
	MemorySize       uint64
	Outstanding      int
	DataWidth        int
	Transactions     uint64
	MaxTime          timing.VTime
	SamplingRatio    int
	PostResetPeriods uint64
	WarmUp           timing.VTime
	BusTimeout       uint64
}

// DefaultConfig returns the configuration of the reference bring-up.
func DefaultConfig() Config {
	return Config{
		Seed:             0,
		Period:           clocking.DefaultPeriod,
		CASLatency:       2,
		NumPorts:         1,
		MemorySize:       1 << 20,
		Outstanding:      4,
		DataWidth:        32,
		Transactions:     1000,
		MaxTime:          DefaultMaxTime,
		SamplingRatio:    clocking.DefaultSamplingRatio,
		PostResetPeriods: clocking.DefaultPostResetPeriods,
		WarmUp:           clocking.DefaultWarmUp,
		BusTimeout:       apb.DefaultTimeout,
	}
}

// Validate checks that the configuration can run.
func (c Config) Validate() error {
	if err := ddrinit.ValidateCASLatency(c.CASLatency); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch {
	case c.Period == 0:
		return errors.Wrap(ErrInvalidConfig, "period must be positive")
	case c.SamplingRatio < 1:
		return errors.Wrap(ErrInvalidConfig, "sampling ratio must be at least 1")
	case c.NumPorts < 1:
		return errors.Wrap(ErrInvalidConfig, "at least one memory port")
	case c.Outstanding < 1:
		return errors.Wrap(ErrInvalidConfig, "outstanding depth must be positive")
	case c.DataWidth < 8 || c.DataWidth%8 != 0:
		return errors.Wrapf(ErrInvalidConfig,
			"data width %d is not a whole number of bytes", c.DataWidth)
	case c.MemorySize < uint64(c.DataWidth/8):
		return errors.Wrapf(ErrInvalidConfig,
			"memory size %d smaller than one word", c.MemorySize)
	case c.MaxTime == 0:
		return errors.Wrap(ErrInvalidConfig, "time limit must be positive")
	case c.BusTimeout == 0:
		return errors.Wrap(ErrInvalidConfig, "bus timeout must be positive")
	}

	return nil
}
