package sequencer

import (
	"fmt"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/sdramtester/ddrinit"
)

var _ = Describe("Sequencer", func() {
	var (
		mockCtrl *gomock.Controller
		bus      *MockRegisterBus
		seq      *Sequencer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		bus = NewMockRegisterBus(mockCtrl)
		seq = New(bus)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write a single register without settling", func() {
		bus.EXPECT().Write(uint32(0x110), uint32(0x03)).Return(nil)

		Expect(seq.Write(0x110, 0x03)).To(Succeed())
	})

	It("should pass delays to the bus", func() {
		bus.EXPECT().Delay(uint64(1000)).Return(nil)

		Expect(seq.Delay(1000)).To(Succeed())
	})

	It("should issue a command as four writes and one settle delay", func() {
		gomock.InOrder(
			bus.EXPECT().Write(uint32(0x10C), uint32(0)).Return(nil),
			bus.EXPECT().Write(uint32(0x108), uint32(0x310)).Return(nil),
			bus.EXPECT().Write(uint32(0x104), uint32(ddrinit.MOD)).Return(nil),
			bus.EXPECT().Write(uint32(0x100), uint32(0)).Return(nil),
			bus.EXPECT().Delay(uint64(10)).Return(nil),
		)

		Expect(seq.Command(ddrinit.MOD, 0, 0x310)).To(Succeed())
	})

	It("should stop a command at the first failed write", func() {
		failure := errors.New("slave error")

		gomock.InOrder(
			bus.EXPECT().Write(uint32(0x10C), uint32(3)).Return(nil),
			bus.EXPECT().Write(uint32(0x108), uint32(0)).Return(failure),
		)

		err := seq.Command(ddrinit.MOD, 3, 0)

		var stepErr *StepError
		Expect(errors.As(err, &stepErr)).To(BeTrue())
		Expect(stepErr.Index).To(Equal(1))
		Expect(stepErr.Step.Address).To(Equal(ddrinit.RegCommandAddress))
		Expect(stepErr.Settling).To(BeFalse())
		Expect(errors.Is(err, failure)).To(BeTrue())
		Expect(errors.Cause(err)).To(Equal(failure))
	})

	It("should report a failed settle delay", func() {
		failure := errors.New("killed")

		gomock.InOrder(
			bus.EXPECT().Write(uint32(0x000), uint32(0)).Return(nil),
			bus.EXPECT().Write(uint32(0x110), uint32(0)).Return(nil),
			bus.EXPECT().Delay(uint64(10)).Return(failure),
		)

		err := seq.RunSteps(ddrinit.ResetReleaseSteps())

		var stepErr *StepError
		Expect(errors.As(err, &stepErr)).To(BeTrue())
		Expect(stepErr.Index).To(Equal(1))
		Expect(stepErr.Settling).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("settle 10 cycles"))
	})

	It("should run a whole script in order", func() {
		script, err := ddrinit.Script(2)
		Expect(err).NotTo(HaveOccurred())

		trace := &traceBus{}
		Expect(New(trace).RunScript(script)).To(Succeed())

		var want []string
		for _, cmd := range script {
			want = append(want,
				fmt.Sprintf("write(0x10c,0x%x)", cmd.Bank),
				fmt.Sprintf("write(0x108,0x%x)", cmd.Address),
				fmt.Sprintf("write(0x104,0x%x)", uint32(cmd.Opcode)),
				"write(0x100,0x0)",
				"delay(10)",
			)
		}
		Expect(trace.ops).To(Equal(want))
	})

	It("should name the failed command", func() {
		trace := &traceBus{failAt: 7}
		script := ddrinit.CalibrationScript()
		mrs, err := ddrinit.ModeRegisterScript(2)
		Expect(err).NotTo(HaveOccurred())

		err = New(trace).RunScript(append(mrs, script...))

		Expect(err).To(MatchError(ContainSubstring("MOD(bank3,0x0)")))
		Expect(trace.ops).To(HaveLen(7))
	})
})

type traceBus struct {
	ops    []string
	failAt int
}

func (b *traceBus) Write(address, value uint32) error {
	b.ops = append(b.ops, fmt.Sprintf("write(0x%x,0x%x)", address, value))
	return b.check()
}

func (b *traceBus) Delay(cycles uint64) error {
	b.ops = append(b.ops, fmt.Sprintf("delay(%d)", cycles))
	return b.check()
}

func (b *traceBus) check() error {
	if b.failAt > 0 && len(b.ops) == b.failAt {
		return errors.New("injected failure")
	}

	return nil
}
