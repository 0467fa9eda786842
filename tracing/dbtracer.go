package tracing

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/apb"
	"github.com/sarchlab/sdramtester/datarecording"
	"github.com/sarchlab/sdramtester/device"
	"github.com/sarchlab/sdramtester/memtester"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/timing"
)

// Tables written by a DBTracer.
const (
	TableRegisterWrite  = "register_write"
	TableRegisterDelay  = "register_delay"
	TableDRAMCommand    = "dram_command"
	TableMemTransaction = "mem_transaction"
	TableEvent          = "event"
)

// RegisterWriteEntry is a row of TableRegisterWrite.
type RegisterWriteEntry struct {
	Start   timing.VTime
	End     timing.VTime
	Address uint32
	Value   uint32
	Error   string
}

// RegisterDelayEntry is a row of TableRegisterDelay.
type RegisterDelayEntry struct {
	Start  timing.VTime
	End    timing.VTime
	Cycles uint64
}

// DRAMCommandEntry is a row of TableDRAMCommand.
type DRAMCommandEntry struct {
	Time    timing.VTime
	Opcode  string
	Bank    uint8
	Address uint32
}

// MemTransactionEntry is a row of TableMemTransaction.
type MemTransactionEntry struct {
	ID       string
	Port     int
	Write    bool
	Address  uint64
	Data     string
	Issued   timing.VTime
	Finished timing.VTime
	Status   string
}

// EventEntry is a row of TableEvent, used for all other hooks.
type EventEntry struct {
	Time   timing.VTime
	Domain string
	What   string
	Detail string
}

// DBTracer writes hooks into a DataRecorder. The first error it meets is
// kept and later hooks are ignored.
type DBTracer struct {
	timeTeller timing.TimeTeller
	recorder   datarecording.DataRecorder
	err        error
}

// NewDBTracer creates the tables and returns the tracer.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	recorder datarecording.DataRecorder,
) (*DBTracer, error) {
	tables := []struct {
		name   string
		sample any
	}{
		{TableRegisterWrite, RegisterWriteEntry{}},
		{TableRegisterDelay, RegisterDelayEntry{}},
		{TableDRAMCommand, DRAMCommandEntry{}},
		{TableMemTransaction, MemTransactionEntry{}},
		{TableEvent, EventEntry{}},
	}

	for _, t := range tables {
		if err := recorder.CreateTable(t.name, t.sample); err != nil {
			return nil, errors.Wrap(err, "create trace tables")
		}
	}

	return &DBTracer{timeTeller: timeTeller, recorder: recorder}, nil
}

// Err returns the first recording error.
func (t *DBTracer) Err() error {
	return t.err
}

// Func records the hook.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	if t.err != nil {
		return
	}

	table, entry := t.entryOf(ctx)
	t.err = t.recorder.InsertData(table, entry)
}

func (t *DBTracer) entryOf(ctx hooking.HookCtx) (string, any) {
	switch d := ctx.Detail.(type) {
	case apb.WriteRecord:
		e := RegisterWriteEntry{
			Start:   d.Start,
			End:     d.End,
			Address: d.Address,
			Value:   d.Value,
		}
		if d.Err != nil {
			e.Error = d.Err.Error()
		}

		return TableRegisterWrite, e
	case apb.DelayRecord:
		return TableRegisterDelay, RegisterDelayEntry{
			Start:  d.Start,
			End:    d.End,
			Cycles: d.Cycles,
		}
	case device.CommandRecord:
		return TableDRAMCommand, DRAMCommandEntry{
			Time:    d.Time,
			Opcode:  d.Command.Opcode.String(),
			Bank:    d.Command.Bank,
			Address: d.Command.Address,
		}
	case memtester.Transaction:
		return TableMemTransaction, MemTransactionEntry{
			ID:       d.ID,
			Port:     d.Port,
			Write:    d.Write,
			Address:  d.Address,
			Data:     hex.EncodeToString(d.Data),
			Issued:   d.Issued,
			Finished: d.Finished,
			Status:   d.Status.String(),
		}
	default:
		return TableEvent, EventEntry{
			Time:   t.timeTeller.Now(),
			Domain: domainName(ctx.Domain),
			What:   ctx.Pos.Name,
			Detail: fmt.Sprint(ctx.Detail),
		}
	}
}
