package clocking

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

type edge struct {
	at    timing.VTime
	level bool
}

type edgeLog struct {
	engine timing.TimeTeller
	edges  map[string][]edge
}

func newEdgeLog(engine timing.TimeTeller, signals ...*wire.Signal) *edgeLog {
	l := &edgeLog{engine: engine, edges: make(map[string][]edge)}
	for _, s := range signals {
		if s != nil {
			s.AcceptHook(l)
		}
	}

	return l
}

func (l *edgeLog) Func(ctx hooking.HookCtx) {
	s := ctx.Item.(*wire.Signal)
	t := ctx.Detail.(wire.Transition)
	l.edges[s.Name()] = append(l.edges[s.Name()], edge{l.engine.Now(), t.To})
}

func (l *edgeLog) within(name string, from, to timing.VTime) []edge {
	var res []edge
	for _, e := range l.edges[name] {
		if e.at >= from && e.at < to {
			res = append(res, e)
		}
	}

	return res
}

func newSignals(withReset bool) Signals {
	s := Signals{
		Clk:   wire.NewSignal("clk"),
		Clk0:  wire.NewSignal("clk0"),
		Clk90: wire.NewSignal("clk90"),
	}
	if withReset {
		s.Reset = wire.NewSignal("reset")
	}

	return s
}

var _ = Describe("Waveform", func() {
	It("should describe one base period in eight quarter-steps", func() {
		wave := Waveform(2)
		Expect(wave).To(HaveLen(8))
		Expect(wave[0]).To(ConsistOf(
			Change{BaseClock, true}, Change{SamplingClock0, true}))
		Expect(wave[1]).To(ConsistOf(Change{SamplingClock90, true}))
		Expect(wave[2]).To(ConsistOf(Change{SamplingClock0, false}))
		Expect(wave[3]).To(ConsistOf(Change{SamplingClock90, false}))
		Expect(wave[4]).To(ConsistOf(
			Change{BaseClock, false}, Change{SamplingClock0, true}))
		Expect(wave[7]).To(ConsistOf(Change{SamplingClock90, false}))
	})

	It("should reproduce the 1:4 serdes waveform", func() {
		wave := Waveform(4)
		Expect(wave).To(HaveLen(16))
		Expect(wave[8]).To(ContainElement(Change{BaseClock, false}))
	})
})

var _ = Describe("Generator", func() {
	var (
		engine *timing.SerialEngine
		sigs   Signals
		warmUp timing.VTime
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		sigs = newSignals(true)
		warmUp = 1000 * timing.Picosecond
	})

	build := func(period timing.VTime) (*Generator, *edgeLog) {
		g, err := MakeBuilder().
			WithEngine(engine).
			WithPeriod(period).
			WithWarmUp(warmUp).
			Build("ClockGen", sigs)
		Expect(err).NotTo(HaveOccurred())

		log := newEdgeLog(engine, sigs.Clk, sigs.Clk0, sigs.Clk90, sigs.Reset)

		return g, log
	}

	DescribeTable("phase relationship within every base period",
		func(ps uint64) {
			period := timing.PS(ps)
			g, log := build(period)
			g.Start()

			start := warmUp + period
			Expect(engine.RunUntil(start + 20*period)).To(Succeed())
			Expect(g.ClockStart()).To(Equal(start))

			quarter := period / 8
			Expect(g.QuarterStep()).To(Equal(quarter))

			for c := timing.VTime(0); c < 20; c++ {
				from := start + c*period
				to := from + period

				clk := log.within("clk", from, to)
				clk0 := log.within("clk0", from, to)
				clk90 := log.within("clk90", from, to)

				Expect(clk).To(HaveLen(2))
				Expect(clk0).To(HaveLen(4))
				Expect(clk90).To(HaveLen(4))

				Expect(clk[0]).To(Equal(edge{from, true}))
				Expect(clk[1]).To(Equal(edge{from + period/2, false}))

				for i := range clk0 {
					Expect(clk0[i].at).To(Equal(from + timing.VTime(2*i)*quarter))
					Expect(clk0[i].level).To(Equal(i%2 == 0))
					Expect(clk90[i].at - clk0[i].at).To(Equal(quarter))
					Expect(clk90[i].level).To(Equal(clk0[i].level))
				}
			}
		},
		Entry("3300 ps", uint64(3300)),
		Entry("3200 ps", uint64(3200)),
		Entry("1250 ps", uint64(1250)),
		Entry("10000 ps", uint64(10000)),
		Entry("1 ps", uint64(1)),
	)

	It("should hold reset for the warm-up and start one period after release", func() {
		period := timing.PS(3300)
		g, log := build(period)
		g.Start()

		Expect(engine.RunUntil(warmUp + 3*period)).To(Succeed())

		Expect(log.edges["reset"]).To(Equal([]edge{
			{0, true},
			{warmUp, false},
		}))
		Expect(log.within("clk", 0, warmUp+period)).To(BeEmpty())
		Expect(log.within("clk0", 0, warmUp+period)).To(BeEmpty())
		Expect(log.edges["clk"][0].at).To(Equal(warmUp + period))
		Expect(log.edges["clk"][0].at - warmUp).To(BeNumerically(">=", period))
	})

	It("should use the fixed warm-up by default", func() {
		g, err := MakeBuilder().WithEngine(engine).Build("ClockGen", sigs)
		Expect(err).NotTo(HaveOccurred())
		log := newEdgeLog(engine, sigs.Reset, sigs.Clk)

		g.Start()
		Expect(engine.RunUntil(DefaultWarmUp + 2*DefaultPeriod)).To(Succeed())

		Expect(log.edges["reset"][1]).To(Equal(edge{DefaultWarmUp, false}))
		Expect(log.edges["clk"][0].at).To(Equal(DefaultWarmUp + DefaultPeriod))
	})

	It("should honor a longer post-reset hold", func() {
		period := timing.PS(3300)
		g, err := MakeBuilder().
			WithEngine(engine).
			WithPeriod(period).
			WithWarmUp(warmUp).
			WithPostResetPeriods(100).
			Build("ClockGen", sigs)
		Expect(err).NotTo(HaveOccurred())
		log := newEdgeLog(engine, sigs.Clk)

		g.Start()
		Expect(engine.RunUntil(warmUp + 100*period)).To(Succeed())

		Expect(log.edges["clk"]).To(HaveLen(1))
		Expect(log.edges["clk"][0].at).To(Equal(warmUp + 100*period))
	})

	It("should run without a reset signal", func() {
		sigs = newSignals(false)
		period := timing.PS(3300)
		g, log := build(period)
		g.Start()

		Expect(engine.RunUntil(warmUp + 2*period)).To(Succeed())
		Expect(log.edges).NotTo(HaveKey("reset"))
		Expect(log.edges["clk"][0].at).To(Equal(warmUp + period))
	})

	It("should produce identical edges on every run", func() {
		run := func() map[string][]edge {
			engine = timing.NewSerialEngine()
			sigs = newSignals(true)
			g, log := build(timing.PS(3300))
			g.Start()
			Expect(engine.RunUntil(warmUp + 50*timing.PS(3300))).To(Succeed())
			return log.edges
		}

		Expect(run()).To(Equal(run()))
	})

	It("should refuse a second driver", func() {
		_, err := MakeBuilder().WithEngine(engine).Build("A", sigs)
		Expect(err).NotTo(HaveOccurred())

		_, err = MakeBuilder().WithEngine(engine).Build("B", sigs)
		Expect(errors.Is(err, wire.ErrMultipleDrivers)).To(BeTrue())
	})

	It("should reject invalid configuration", func() {
		_, err := MakeBuilder().WithEngine(engine).WithPeriod(0).Build("G", sigs)
		Expect(errors.Is(err, ErrInvalidPeriod)).To(BeTrue())

		_, err = MakeBuilder().WithEngine(engine).WithSamplingRatio(0).Build("G", sigs)
		Expect(errors.Is(err, ErrInvalidRatio)).To(BeTrue())

		_, err = MakeBuilder().Build("G", sigs)
		Expect(errors.Is(err, ErrNoEngine)).To(BeTrue())

		sigs.Clk90 = nil
		_, err = MakeBuilder().WithEngine(engine).Build("G", sigs)
		Expect(errors.Is(err, ErrMissingSignal)).To(BeTrue())
	})
})
