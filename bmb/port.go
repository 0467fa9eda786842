package bmb

import (
	"github.com/pkg/errors"
)

// Errors returned by Send.
var (
	ErrPortBusy = errors.New("bmb: port busy")
	ErrNotReady = errors.New("bmb: memory not ready")
)

// A RequestHandler serves the requests arriving at a port.
type RequestHandler interface {
	Accept(port *Port, req *Request) error
}

// A Responder receives the responses of a port.
type Responder interface {
	Deliver(port *Port, rsp *Response)
}

// A Port is one memory-request bus. It tracks the requests in flight and
// refuses new ones when Capacity of them are outstanding.
type Port struct {
	name     string
	index    int
	capacity int
	handler  RequestHandler

	responder   Responder
	outstanding map[string]*Request
}

// NewPort creates a port served by handler.
func NewPort(name string, index, capacity int, handler RequestHandler) *Port {
	return &Port{
		name:        name,
		index:       index,
		capacity:    capacity,
		handler:     handler,
		outstanding: make(map[string]*Request),
	}
}

// Name returns the name of the port.
func (p *Port) Name() string {
	return p.name
}

// Index returns the position of the port in its device.
func (p *Port) Index() int {
	return p.index
}

// Capacity returns how many requests can be in flight.
func (p *Port) Capacity() int {
	return p.capacity
}

// NumOutstanding returns how many requests are waiting for a response.
func (p *Port) NumOutstanding() int {
	return len(p.outstanding)
}

// Connect sets who receives the responses.
func (p *Port) Connect(r Responder) {
	p.responder = r
}

// Send hands a request to the handler.
func (p *Port) Send(req *Request) error {
	if len(p.outstanding) >= p.capacity {
		return errors.Wrapf(ErrPortBusy, "%s: %d in flight", p.name, p.capacity)
	}

	if err := p.handler.Accept(p, req); err != nil {
		return errors.Wrap(err, p.name)
	}

	p.outstanding[req.ID] = req

	return nil
}

// Respond completes a request and forwards the response.
func (p *Port) Respond(rsp *Response) {
	if _, ok := p.outstanding[rsp.RespondTo]; !ok {
		panic("bmb: response to unknown request " + rsp.RespondTo)
	}

	delete(p.outstanding, rsp.RespondTo)

	if p.responder != nil {
		p.responder.Deliver(p, rsp)
	}
}
