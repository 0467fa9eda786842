package monitoring

import (
	"log"
	"time"

	"github.com/sarchlab/sdramtester/sim/task"
	"github.com/sarchlab/sdramtester/sim/timing"
)

// DefaultSpeedInterval is the simulated time between two speed reports.
const DefaultSpeedInterval = 100 * timing.Microsecond

// A SpeedPrinter periodically logs how fast simulated time advances compared
// with wall-clock time. It only observes the simulation.
type SpeedPrinter struct {
	engine    timing.Engine
	logger    *log.Logger
	interval  timing.VTime
	wallStart time.Time
	simStart  timing.VTime
	reports   int
}

// NewSpeedPrinter creates a SpeedPrinter that reports every interval of
// simulated time.
func NewSpeedPrinter(
	engine timing.Engine,
	logger *log.Logger,
	interval timing.VTime,
) *SpeedPrinter {
	if interval == 0 {
		interval = DefaultSpeedInterval
	}

	return &SpeedPrinter{
		engine:   engine,
		logger:   logger,
		interval: interval,
	}
}

// NumReports returns how many lines the printer has logged.
func (s *SpeedPrinter) NumReports() int {
	return s.reports
}

// Start spawns the reporting task.
func (s *SpeedPrinter) Start() {
	s.wallStart = time.Now()
	s.simStart = s.engine.Now()

	task.Spawn(s.engine, "SpeedPrinter", func(p *task.Proc) error {
		for {
			if err := p.Wait(s.interval); err != nil {
				return err
			}

			s.report(p.Now())
		}
	})
}

func (s *SpeedPrinter) report(now timing.VTime) {
	wall := time.Since(s.wallStart)
	simulated := (now - s.simStart).InSec()

	speed := 0.0
	if wall > 0 {
		speed = simulated / wall.Seconds()
	}

	s.reports++
	s.logger.Printf("simulated %.3f us in %s, %.3g simulated s per wall s",
		now.InSec()*1e6, wall.Round(time.Millisecond), speed)
}
