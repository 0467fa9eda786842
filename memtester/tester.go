// Package memtester generates random memory traffic on the request ports of
// a memory controller and checks that every read returns the last value
// written to its address.
package memtester

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sarchlab/sdramtester/bmb"
	"github.com/sarchlab/sdramtester/sim/hooking"
	"github.com/sarchlab/sdramtester/sim/task"
	"github.com/sarchlab/sdramtester/sim/timing"
	"github.com/sarchlab/sdramtester/sim/wire"
)

// ErrErrorResponse is returned when the memory reports a failed access.
var ErrErrorResponse = errors.New("memory responded with an error")

// HookPosTransaction is triggered when a request completes. The item is the
// *Tester and the detail is a Transaction.
var HookPosTransaction = &hooking.HookPos{Name: "MemTransaction"}

// A Transaction is a completed request.
type Transaction struct {
	ID       string
	Port     int
	Write    bool
	Address  uint64
	Data     []byte
	Issued   timing.VTime
	Finished timing.VTime
	Status   bmb.Status
}

// A MismatchError reports a read that did not return the expected data.
type MismatchError struct {
	Time     timing.VTime
	Port     int
	ReqID    string
	Address  uint64
	Expected []byte
	Actual   []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("read %s on port %d at 0x%x: expected %x, got %x",
		e.ReqID, e.Port, e.Address, e.Expected, e.Actual)
}

type pendingReq struct {
	req      *bmb.Request
	port     int
	expected []byte
	issued   timing.VTime
}

// A Tester issues random reads and writes once its run flag is set and the
// memory is out of reset.
type Tester struct {
	hooking.HookableBase

	name        string
	engine      timing.Engine
	clk         *wire.Signal
	reset       *wire.Signal
	ports       []*bmb.Port
	rand        *rand.Rand
	reqs        bmb.ReqBuilder
	wordBytes   uint64
	numWords    uint64
	outstanding int

	run      bool
	proc     *task.Proc
	total    uint64
	issued   uint64
	finished uint64
	err      error

	known     map[uint64][]byte
	knownList []uint64
	pending   map[string]*pendingReq
	busy      map[uint64]bool

	NumReads      uint64
	NumWrites     uint64
	NumMismatches uint64
}

// Name returns the name of the tester.
func (t *Tester) Name() string {
	return t.name
}

// SetRun enables or disables traffic generation.
func (t *Tester) SetRun(run bool) {
	t.run = run
}

// IsRun tells if traffic generation is enabled.
func (t *Tester) IsRun() bool {
	return t.run
}

// Total returns the transaction budget.
func (t *Tester) Total() uint64 {
	return t.total
}

// Issued returns the number of requests accepted by the ports.
func (t *Tester) Issued() uint64 {
	return t.issued
}

// Finished returns the number of completed requests.
func (t *Tester) Finished() uint64 {
	return t.finished
}

// Done tells if all the transactions have completed.
func (t *Tester) Done() bool {
	return t.finished == t.total
}

// Err returns the first failure the tester has seen.
func (t *Tester) Err() error {
	return t.err
}

// Start spawns the task that generates traffic on each rising clock edge.
func (t *Tester) Start() {
	if t.proc != nil {
		return
	}

	t.proc = task.Spawn(t.engine, t.name, t.loop)
}

func (t *Tester) loop(p *task.Proc) error {
	for {
		if err := p.WaitEdge(t.clk, wire.Rising); err != nil {
			return err
		}

		if t.err != nil {
			return t.err
		}

		if !t.run || t.inReset() {
			continue
		}

		if t.Done() {
			t.engine.Stop()
			return nil
		}

		for i := range t.ports {
			t.issue(i)
		}
	}
}

func (t *Tester) inReset() bool {
	return t.reset != nil && t.reset.Level()
}

func (t *Tester) issue(port int) {
	if t.issued == t.total || t.ports[port].NumOutstanding() >= t.outstanding {
		return
	}

	var req *bmb.Request

	pending := &pendingReq{port: port, issued: t.engine.Now()}

	if t.shouldRead() {
		address := t.randomKnownAddress()
		if t.busy[address] {
			return
		}

		req = t.reqs.
			WithSource(port).
			WithAddress(address).
			WithLength(t.wordBytes).
			Build()
		pending.expected = t.known[address]
	} else {
		address := t.randomAddress()
		if t.busy[address] {
			return
		}

		data := make([]byte, t.wordBytes)
		t.rand.Read(data)

		req = t.reqs.
			WithSource(port).
			WithAddress(address).
			WithData(data).
			Build()
	}

	if err := t.ports[port].Send(req); err != nil {
		return
	}

	pending.req = req
	t.pending[req.ID] = pending
	t.busy[req.Address] = true
	t.issued++

	if req.Write {
		if _, ok := t.known[req.Address]; !ok {
			t.knownList = append(t.knownList, req.Address)
		}

		t.known[req.Address] = req.Data
		t.NumWrites++
	} else {
		t.NumReads++
	}
}

func (t *Tester) shouldRead() bool {
	if len(t.known) == 0 {
		return false
	}

	return t.rand.Float64() > 0.5
}

func (t *Tester) randomAddress() uint64 {
	return uint64(t.rand.Int63n(int64(t.numWords))) * t.wordBytes
}

func (t *Tester) randomKnownAddress() uint64 {
	return t.knownList[t.rand.Intn(len(t.knownList))]
}

// Deliver receives a response from a port.
func (t *Tester) Deliver(_ *bmb.Port, rsp *bmb.Response) {
	p, ok := t.pending[rsp.RespondTo]
	if !ok {
		panic("memtester: response to unknown request " + rsp.RespondTo)
	}

	delete(t.pending, rsp.RespondTo)
	delete(t.busy, p.req.Address)
	t.finished++

	t.check(p, rsp)

	t.InvokeHook(hooking.HookCtx{
		Domain: t,
		Pos:    HookPosTransaction,
		Item:   t,
		Detail: Transaction{
			ID:       p.req.ID,
			Port:     p.port,
			Write:    p.req.Write,
			Address:  p.req.Address,
			Data:     t.transactionData(p, rsp),
			Issued:   p.issued,
			Finished: t.engine.Now(),
			Status:   rsp.Status,
		},
	})
}

func (t *Tester) transactionData(p *pendingReq, rsp *bmb.Response) []byte {
	if p.req.Write {
		return p.req.Data
	}

	return rsp.Data
}

func (t *Tester) check(p *pendingReq, rsp *bmb.Response) {
	if rsp.Status != bmb.StatusOK {
		t.fail(errors.Wrapf(ErrErrorResponse, "%s", p.req))
		return
	}

	if p.req.Write || bytes.Equal(p.expected, rsp.Data) {
		return
	}

	t.NumMismatches++
	t.fail(&MismatchError{
		Time:     t.engine.Now(),
		Port:     p.port,
		ReqID:    p.req.ID,
		Address:  p.req.Address,
		Expected: p.expected,
		Actual:   rsp.Data,
	})
}

func (t *Tester) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}
