package tracing

import (
	"encoding/hex"
	"log"

	"github.com/sarchlab/sdramtester/apb"
	"github.com/sarchlab/sdramtester/ddrinit"
	"github.com/sarchlab/sdramtester/device"
	"github.com/sarchlab/sdramtester/memtester"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/timing"
)

// LogTracer prints bus writes, commands and transactions.
type LogTracer struct {
	logger     *log.Logger
	timeTeller timing.TimeTeller
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(logger *log.Logger, timeTeller timing.TimeTeller) *LogTracer {
	return &LogTracer{logger: logger, timeTeller: timeTeller}
}

// Func prints the hook.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	now := t.timeTeller.Now().InPS()

	switch d := ctx.Detail.(type) {
	case apb.WriteRecord:
		status := "OK"
		if d.Err != nil {
			status = d.Err.Error()
		}

		t.logger.Printf("%d ps, %s, write %s(0x%03x) = 0x%x, %s",
			now, domainName(ctx.Domain), ddrinit.RegisterName(d.Address),
			d.Address, d.Value, status)
	case apb.DelayRecord:
		t.logger.Printf("%d ps, %s, delay %d cycles",
			now, domainName(ctx.Domain), d.Cycles)
	case device.CommandRecord:
		t.logger.Printf("%d ps, %s, command %s",
			now, domainName(ctx.Domain), d.Command)
	case memtester.Transaction:
		kind := "read"
		if d.Write {
			kind = "write"
		}

		t.logger.Printf("%d ps, %s, %s 0x%x port %d [%s] %s",
			now, domainName(ctx.Domain), kind, d.Address, d.Port,
			hex.EncodeToString(d.Data), d.Status)
	default:
		t.logger.Printf("%d ps, %s, %s, %v",
			now, domainName(ctx.Domain), ctx.Pos.Name, ctx.Detail)
	}
}
