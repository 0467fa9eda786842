package timing

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type namedRecorder struct {
	labelRecorder
}

func (r *namedRecorder) Name() string {
	return "Recorder"
}

var _ = Describe("EventLogger", func() {
	It("should print each event once", func() {
		engine := NewSerialEngine()
		buf := new(bytes.Buffer)
		engine.AcceptHook(NewEventLogger(log.New(buf, "", 0)))

		recorder := &namedRecorder{labelRecorder{engine: engine}}
		engine.Schedule(newLabelEvent(PS(3300), recorder, "a"))
		engine.Schedule(newLabelEvent(PS(6600), recorder, "b"))

		Expect(engine.Run()).To(Succeed())

		Expect(buf.String()).To(Equal(
			"3300 ps, timing.labelEvent -> Recorder\n" +
				"6600 ps, timing.labelEvent -> Recorder\n"))
	})
})
