// Package bmb defines the memory-request bus between the memory tester and
// the ports of the controller.
package bmb

import (
	"fmt"

	"github.com/sarchlab/sdramtester/sim/id"
)

// Status is the outcome of a request.
type Status int

// Statuses of a response.
const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// A Request reads or writes Length bytes at Address.
type Request struct {
	ID      string
	Source  int
	Write   bool
	Address uint64
	Data    []byte
	Length  uint64
}

func (r *Request) String() string {
	kind := "read"
	if r.Write {
		kind = "write"
	}

	return fmt.Sprintf("%s %s 0x%x+%d", r.ID, kind, r.Address, r.Length)
}

// A Response answers a Request.
type Response struct {
	RespondTo string
	Write     bool
	Address   uint64
	Data      []byte
	Status    Status
}

// ReqBuilder builds requests.
type ReqBuilder struct {
	ids     id.IDGenerator
	source  int
	write   bool
	address uint64
	data    []byte
	length  uint64
}

// MakeReqBuilder creates a builder that names requests with ids.
func MakeReqBuilder(ids id.IDGenerator) ReqBuilder {
	return ReqBuilder{ids: ids}
}

// WithSource sets the index of the issuer.
func (b ReqBuilder) WithSource(source int) ReqBuilder {
	b.source = source
	return b
}

// WithAddress sets the address of the request.
func (b ReqBuilder) WithAddress(address uint64) ReqBuilder {
	b.address = address
	return b
}

// WithLength sets the number of bytes a read returns.
func (b ReqBuilder) WithLength(length uint64) ReqBuilder {
	b.length = length
	return b
}

// WithData makes the request a write of data.
func (b ReqBuilder) WithData(data []byte) ReqBuilder {
	b.write = true
	b.data = data
	b.length = uint64(len(data))

	return b
}

// Build creates the request with a fresh ID.
func (b ReqBuilder) Build() *Request {
	return &Request{
		ID:      b.ids.Generate(),
		Source:  b.source,
		Write:   b.write,
		Address: b.address,
		Data:    b.data,
		Length:  b.length,
	}
}

// MakeResponse creates the response of req with the given status.
func MakeResponse(req *Request, status Status) *Response {
	return &Response{
		RespondTo: req.ID,
		Write:     req.Write,
		Address:   req.Address,
		Status:    status,
	}
}
