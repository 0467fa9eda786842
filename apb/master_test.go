package apb

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/sdramtester/clocking"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/task"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

var _ = Describe("Master", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *timing.SerialEngine
		clk      *wire.Signal
		slave    *MockSlave
		ns       = timing.Nanosecond
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = timing.NewSerialEngine()
		slave = NewMockSlave(mockCtrl)

		clk = wire.NewSignal("clk")
		gen, err := clocking.MakeBuilder().
			WithEngine(engine).
			WithPeriod(ns).
			WithWarmUp(0).
			Build("ClockGen", clocking.Signals{
				Clk:   clk,
				Clk0:  wire.NewSignal("clk0"),
				Clk90: wire.NewSignal("clk90"),
			})
		Expect(err).NotTo(HaveOccurred())
		gen.Start()
	})

	AfterEach(func() {
		engine.Finished()
		mockCtrl.Finish()
	})

	run := func(body func(m *Master) error) error {
		task.Spawn(engine, "Foreground", func(p *task.Proc) error {
			m := MakeBuilder().
				WithClock(clk).
				WithTimeout(4).
				Build("APB", p, slave)

			return body(m)
		})

		return engine.RunUntil(100 * ns)
	}

	It("should complete a write in the access phase", func() {
		var (
			done      []timing.VTime
			numWrites uint64
		)

		gomock.InOrder(
			slave.EXPECT().Write(uint32(0x110), uint32(0x01)).Return(Response{}),
			slave.EXPECT().Write(uint32(0x110), uint32(0x03)).Return(Response{}),
		)

		err := run(func(m *Master) error {
			if err := m.Write(0x110, 0x01); err != nil {
				return err
			}
			done = append(done, engine.Now())

			if err := m.Write(0x110, 0x03); err != nil {
				return err
			}
			done = append(done, engine.Now())

			if err := m.Delay(3); err != nil {
				return err
			}
			done = append(done, engine.Now())

			numWrites = m.NumWrites()

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(Equal([]timing.VTime{2 * ns, 4 * ns, 7 * ns}))
		Expect(numWrites).To(Equal(uint64(2)))
	})

	It("should hold the transfer during wait states", func() {
		var end timing.VTime

		slave.EXPECT().
			Write(uint32(0x100), uint32(0)).
			Return(Response{WaitStates: 3})

		err := run(func(m *Master) error {
			err := m.Write(0x100, 0)
			end = engine.Now()

			return err
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(end).To(Equal(5 * ns))
	})

	It("should time out when PREADY never comes", func() {
		var end timing.VTime

		slave.EXPECT().
			Write(uint32(0x100), uint32(0)).
			Return(Response{WaitStates: NeverReady})

		err := run(func(m *Master) error {
			err := m.Write(0x100, 0)
			end = engine.Now()

			return err
		})

		Expect(errors.Is(err, ErrTimeout)).To(BeTrue())
		Expect(end).To(Equal(6 * ns))
	})

	It("should report PSLVERR", func() {
		slave.EXPECT().
			Write(uint32(0x104), uint32(0x0D)).
			Return(Response{SlaveError: true})

		err := run(func(m *Master) error {
			return m.Write(0x104, 0x0D)
		})

		Expect(errors.Is(err, ErrSlaveError)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("0x104"))
	})

	It("should publish writes and delays to hooks", func() {
		var (
			writes []WriteRecord
			delays []DelayRecord
		)

		slave.EXPECT().Write(uint32(0x000), uint32(0)).Return(Response{})
		slave.EXPECT().
			Write(uint32(0x10C), uint32(2)).
			Return(Response{SlaveError: true})

		err := run(func(m *Master) error {
			m.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				switch ctx.Pos {
				case HookPosWrite:
					writes = append(writes, ctx.Detail.(WriteRecord))
				case HookPosDelay:
					delays = append(delays, ctx.Detail.(DelayRecord))
				}
			}))

			if err := m.Write(0x000, 0); err != nil {
				return err
			}

			if err := m.Delay(10); err != nil {
				return err
			}

			return m.Write(0x10C, 2)
		})

		Expect(errors.Is(err, ErrSlaveError)).To(BeTrue())

		Expect(writes).To(HaveLen(2))
		Expect(writes[0]).To(Equal(WriteRecord{
			Address: 0x000, Value: 0, Start: 0, End: 2 * ns,
		}))
		Expect(writes[1].Start).To(Equal(12 * ns))
		Expect(writes[1].End).To(Equal(14 * ns))
		Expect(writes[1].Err).To(MatchError(ErrSlaveError))

		Expect(delays).To(Equal([]DelayRecord{
			{Cycles: 10, Start: 2 * ns, End: 12 * ns},
		}))
	})

	It("should accept a function as slave", func() {
		var got []uint32
		f := SlaveFunc(func(address, value uint32) Response {
			got = append(got, address, value)
			return Response{}
		})

		task.Spawn(engine, "Foreground", func(p *task.Proc) error {
			return MakeBuilder().WithClock(clk).Build("APB", p, f).Write(1, 2)
		})

		Expect(engine.RunUntil(10 * ns)).To(Succeed())
		Expect(got).To(Equal([]uint32{1, 2}))
	})
})
