package task

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

type toggleEvent struct {
	*timing.EventBase
	level bool
}

type toggler struct {
	driver *wire.Driver
}

func (t *toggler) Handle(e timing.Event) error {
	t.driver.Set(e.(toggleEvent).level)
	return nil
}

var _ = Describe("Proc", func() {
	var engine *timing.SerialEngine

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
	})

	It("should advance time when waiting", func() {
		var stamps []timing.VTime

		p := Spawn(engine, "waiter", func(p *Proc) error {
			stamps = append(stamps, p.Now())
			Expect(p.Wait(10)).To(Succeed())
			stamps = append(stamps, p.Now())
			Expect(p.WaitUntil(25)).To(Succeed())
			stamps = append(stamps, p.Now())
			Expect(p.WaitUntil(3)).To(Succeed())
			stamps = append(stamps, p.Now())

			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(stamps).To(Equal([]timing.VTime{0, 10, 25, 25}))
		Expect(p.Finished()).To(BeTrue())
		Expect(p.Err()).NotTo(HaveOccurred())
	})

	It("should interleave tasks in time order", func() {
		var trace []string

		Spawn(engine, "a", func(p *Proc) error {
			for i := 0; i < 3; i++ {
				trace = append(trace, "a")
				if err := p.Wait(2); err != nil {
					return err
				}
			}
			return nil
		})
		Spawn(engine, "b", func(p *Proc) error {
			for i := 0; i < 2; i++ {
				if err := p.Wait(3); err != nil {
					return err
				}
				trace = append(trace, "b")
			}
			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(trace).To(Equal([]string{"a", "a", "b", "a", "b"}))
	})

	It("should resume on edges after the edge instant settles", func() {
		clk := wire.NewSignal("clk")
		other := wire.NewSignal("other")
		clkDriver, _ := clk.Claim("test")
		otherDriver, _ := other.Claim("test")
		gen := &toggler{driver: clkDriver}
		gen2 := &toggler{driver: otherDriver}

		engine.Schedule(toggleEvent{timing.NewEventBase(5, gen), true})
		engine.Schedule(toggleEvent{timing.NewEventBase(5, gen2), true})
		engine.Schedule(toggleEvent{timing.NewEventBase(9, gen), false})
		engine.Schedule(toggleEvent{timing.NewEventBase(12, gen), true})

		var sawOther bool
		var stamps []timing.VTime

		Spawn(engine, "watcher", func(p *Proc) error {
			if err := p.WaitEdge(clk, wire.Rising); err != nil {
				return err
			}
			sawOther = other.Level()
			stamps = append(stamps, p.Now())

			if err := p.WaitEdge(clk, wire.Rising); err != nil {
				return err
			}
			stamps = append(stamps, p.Now())

			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(sawOther).To(BeTrue())
		Expect(stamps).To(Equal([]timing.VTime{5, 12}))
	})

	It("should count cycles", func() {
		clk := wire.NewSignal("clk")
		d, _ := clk.Claim("test")
		gen := &toggler{driver: d}
		for i := 0; i < 10; i++ {
			engine.Schedule(toggleEvent{
				timing.NewEventBase(timing.VTime(10*i+5), gen), i%2 == 0})
		}

		var doneAt timing.VTime
		Spawn(engine, "counter", func(p *Proc) error {
			if err := p.WaitCycles(clk, 3); err != nil {
				return err
			}
			doneAt = p.Now()
			return nil
		})

		Expect(engine.Run()).To(Succeed())
		Expect(doneAt).To(Equal(timing.VTime(45)))
	})

	It("should halt the engine with the body's error", func() {
		failure := errors.New("write failed")
		reached := false

		Spawn(engine, "failing", func(p *Proc) error {
			if err := p.Wait(7); err != nil {
				return err
			}
			return failure
		})
		Spawn(engine, "later", func(p *Proc) error {
			if err := p.Wait(8); err != nil {
				return err
			}
			reached = true
			return nil
		})

		err := engine.Run()
		Expect(errors.Is(err, failure)).To(BeTrue())
		Expect(engine.Now()).To(Equal(timing.VTime(7)))
		Expect(reached).To(BeFalse())
	})

	It("should kill parked tasks when the simulation finishes", func() {
		never := wire.NewSignal("never")
		var waitErr error

		p := Spawn(engine, "parked", func(p *Proc) error {
			waitErr = p.WaitEdge(never, wire.Rising)
			return waitErr
		})

		Expect(engine.Run()).To(Succeed())
		Expect(p.Finished()).To(BeFalse())

		engine.Finished()

		Expect(p.Finished()).To(BeTrue())
		Expect(errors.Is(waitErr, ErrKilled)).To(BeTrue())
		Expect(p.Err()).NotTo(HaveOccurred())
	})

	It("should re-raise panics on the engine side", func() {
		Spawn(engine, "panicking", func(p *Proc) error {
			panic("boom")
		})

		Expect(func() { _ = engine.Run() }).To(PanicWith("boom"))
	})
})
