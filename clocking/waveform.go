package clocking

// Line identifies one of the generated clocks.
type Line int

// Clock lines driven by the generator.
const (
	BaseClock Line = iota
	SamplingClock0
	SamplingClock90
)

func (l Line) String() string {
	switch l {
	case BaseClock:
		return "clk"
	case SamplingClock0:
		return "clk0"
	case SamplingClock90:
		return "clk90"
	default:
		return "unknown"
	}
}

// A Change sets a clock line to a level.
type Change struct {
	Line  Line
	Level bool
}

// A Step lists the changes that happen together at one quarter-step boundary
// of the base period.
type Step []Change

// Waveform returns the changes of one base period for a generator whose
// sampling clocks run ratio cycles per base cycle. The period is cut into
// 4*ratio quarter-steps. Sampling clock 0 changes on even steps, sampling
// clock 90 on odd steps, so it always trails by one quarter-step. The base
// clock rises with step 0 and falls at the half period.
func Waveform(ratio int) []Step {
	steps := 4 * ratio
	wave := make([]Step, steps)

	for k := 0; k < steps; k++ {
		var step Step

		switch k {
		case 0:
			step = append(step, Change{Line: BaseClock, Level: true})
		case steps / 2:
			step = append(step, Change{Line: BaseClock, Level: false})
		}

		if k%2 == 0 {
			step = append(step, Change{Line: SamplingClock0, Level: k%4 == 0})
		} else {
			step = append(step, Change{Line: SamplingClock90, Level: k%4 == 1})
		}

		wave[k] = step
	}

	return wave
}
