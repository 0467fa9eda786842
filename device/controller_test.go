package device

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sdramtester/bmb"
	"github.com/sarchlab/sdramtester/ddrinit"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/id"
	"github.com/sarchlab/sdramtester/sim/timing"
)

type responseLog struct {
	engine timing.TimeTeller
	rsps   []*bmb.Response
	times  []timing.VTime
}

func (l *responseLog) Deliver(_ *bmb.Port, rsp *bmb.Response) {
	l.rsps = append(l.rsps, rsp)
	l.times = append(l.times, l.engine.Now())
}

func bringUp(c *Controller, cl int) {
	writes := []ddrinit.Step{}
	writes = append(writes, ddrinit.ResetReleaseSteps()...)
	writes = append(writes, ddrinit.ClockEnableSteps()...)

	script, err := ddrinit.Script(cl)
	Expect(err).NotTo(HaveOccurred())

	for _, cmd := range script {
		writes = append(writes, ddrinit.Expand(cmd)...)
	}

	for _, w := range writes {
		rsp := c.Write(w.Address, w.Value)
		Expect(rsp.SlaveError).To(BeFalse(), w.String())
	}
}

var _ = Describe("Controller", func() {
	var (
		engine *timing.SerialEngine
		c      *Controller
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		c = MakeBuilder().
			WithEngine(engine).
			WithPeriod(3300 * timing.Picosecond).
			WithNumPorts(2).
			WithMemorySize(1 << 16).
			WithOutstanding(4).
			Build("DDR")
	})

	It("should create the ports", func() {
		Expect(c.Ports()).To(HaveLen(2))
		Expect(c.Ports()[1].Name()).To(Equal("DDR.Port1"))
		Expect(c.Ports()[1].Capacity()).To(Equal(4))
		Expect(c.Storage().Capacity()).To(Equal(uint64(1 << 16)))
	})

	It("should refuse commands before reset release and CKE", func() {
		Expect(c.Write(ddrinit.RegCommandBank, 2).SlaveError).To(BeFalse())
		Expect(c.Write(ddrinit.RegCommandOpcode, uint32(ddrinit.MOD)).
			SlaveError).To(BeFalse())
		Expect(c.Write(ddrinit.RegCommandTrigger, 0).SlaveError).To(BeTrue())

		Expect(c.Write(ddrinit.RegControl, ddrinit.ControlResetRelease).
			SlaveError).To(BeFalse())
		Expect(c.Write(ddrinit.RegCommandTrigger, 0).SlaveError).To(BeTrue())

		Expect(c.NumSlaveErrors).To(Equal(uint64(2)))
		Expect(c.ModeRegisterOK[2]).To(BeFalse())
	})

	It("should refuse CKE while in reset", func() {
		rsp := c.Write(ddrinit.RegControl, ddrinit.ControlClockEnable)

		Expect(rsp.SlaveError).To(BeTrue())
		Expect(c.ClockEnabled).To(BeFalse())
	})

	It("should refuse unmapped registers", func() {
		Expect(c.Write(0x200, 1).SlaveError).To(BeTrue())
	})

	It("should refuse calibration before the mode registers", func() {
		c.Write(ddrinit.RegControl, 0x03)
		for _, s := range ddrinit.Expand(ddrinit.CalibrationScript()[0]) {
			c.Write(s.Address, s.Value)
		}

		Expect(c.ZQCalibrated).To(BeFalse())
		Expect(c.NumSlaveErrors).To(Equal(uint64(1)))
	})

	It("should refuse unknown opcodes and banks", func() {
		c.Write(ddrinit.RegControl, 0x03)

		c.Write(ddrinit.RegCommandOpcode, uint32(ddrinit.CKE|ddrinit.WEn|ddrinit.RASn))
		Expect(c.Write(ddrinit.RegCommandTrigger, 0).SlaveError).To(BeTrue())

		c.Write(ddrinit.RegCommandOpcode, uint32(ddrinit.MOD))
		c.Write(ddrinit.RegCommandBank, 4)
		Expect(c.Write(ddrinit.RegCommandTrigger, 0).SlaveError).To(BeTrue())
	})

	It("should refuse banks that do not fit the bank field", func() {
		c.Write(ddrinit.RegControl, 0x03)

		c.Write(ddrinit.RegCommandBank, 0x100)
		c.Write(ddrinit.RegCommandAddress, 0x310)
		c.Write(ddrinit.RegCommandOpcode, uint32(ddrinit.MOD))
		rsp := c.Write(ddrinit.RegCommandTrigger, 0)

		Expect(rsp.SlaveError).To(BeTrue())
		Expect(c.ModeRegisterOK[0]).To(BeFalse())
		Expect(c.ModeRegisters[0]).To(Equal(uint32(0)))
		Expect(c.NumCommands).To(Equal(uint64(0)))

		c.Write(ddrinit.RegCommandBank, 8)
		c.Write(ddrinit.RegCommandOpcode, uint32(ddrinit.PRE))
		Expect(c.Write(ddrinit.RegCommandTrigger, 0).SlaveError).To(BeTrue())

		c.Write(ddrinit.RegCommandBank, 7)
		Expect(c.Write(ddrinit.RegCommandTrigger, 0).SlaveError).To(BeFalse())
	})

	It("should record mode registers and decode the CAS latency", func() {
		var cmds []ddrinit.RegisterCommand
		c.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			cmds = append(cmds, ctx.Detail.(CommandRecord).Command)
		}))

		bringUp(c, 5)

		Expect(c.Ready()).To(BeTrue())
		Expect(c.ModeRegisters[0]).To(Equal(uint32(0x324)))
		Expect(c.CASLatency).To(Equal(5))
		Expect(c.NumCommands).To(Equal(uint64(5)))

		script, _ := ddrinit.Script(5)
		Expect(cmds).To(Equal(script))
	})

	It("should refuse memory requests until ready", func() {
		req := bmb.MakeReqBuilder(id.NewIDGenerator()).WithLength(4).Build()

		err := c.Ports()[0].Send(req)

		Expect(errors.Is(err, bmb.ErrNotReady)).To(BeTrue())
	})

	It("should answer after CL periods", func() {
		bringUp(c, 2)

		log := &responseLog{engine: engine}
		port := c.Ports()[0]
		port.Connect(log)

		b := bmb.MakeReqBuilder(id.NewIDGenerator())
		write := b.WithAddress(0x100).WithData([]byte{9, 8, 7, 6}).Build()
		read := b.WithAddress(0x102).WithLength(2).Build()
		bad := b.WithAddress(1 << 16).WithLength(2).Build()

		Expect(port.Send(write)).To(Succeed())
		Expect(port.Send(read)).To(Succeed())
		Expect(port.Send(bad)).To(Succeed())
		Expect(port.NumOutstanding()).To(Equal(3))

		Expect(engine.Run()).To(Succeed())

		period := 3300 * timing.Picosecond
		Expect(log.times).To(Equal([]timing.VTime{
			2 * period, 2 * period, 2 * period,
		}))
		Expect(log.rsps[0].RespondTo).To(Equal(write.ID))
		Expect(log.rsps[1].Data).To(Equal([]byte{7, 6}))
		Expect(log.rsps[2].Status).To(Equal(bmb.StatusError))
		Expect(port.NumOutstanding()).To(Equal(0))
		Expect(c.NumMemoryReads).To(Equal(uint64(2)))
		Expect(c.NumMemoryWrites).To(Equal(uint64(1)))
	})

	It("should hold PREADY low for the configured wait states", func() {
		slow := MakeBuilder().
			WithEngine(engine).
			WithRegisterWaitStates(3).
			Build("Slow")

		Expect(slow.Write(ddrinit.RegPhaseCommand, 0).WaitStates).
			To(Equal(uint64(3)))
	})
})
