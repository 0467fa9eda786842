// Package tracing turns the hooks published by the simulation into log lines
// and database rows.
package tracing

import (
	"reflect"

	"github.com/sarchlab/sdramtester/sim/hooking"
)

// CollectTrace attaches the tracer to all the domains. Attaching the same
// tracer twice to a domain panics.
func CollectTrace(tracer hooking.Hook, domains ...hooking.Hookable) {
	for _, d := range domains {
		d.AcceptHook(tracer)
	}
}

func domainName(d any) string {
	if n, ok := d.(interface{ Name() string }); ok {
		return n.Name()
	}

	if d == nil {
		return "<nil>"
	}

	return reflect.TypeOf(d).String()
}
