package debug

import (
	"time"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// Outcome is a handler's verdict on a record.
type Outcome int

const (
	// NotApplicable passes the record to the next handler.
	NotApplicable Outcome = iota
	// Consumed stops the chain.
	Consumed
)

// Dispatch carries one parsed record through the handler chain.
type Dispatch struct {
	// Token is the record's token prefix, NoToken when absent.
	Token Token
	// Exec is set for exec-async records (*running, *stopped). Their token
	// never resolves a context.
	Exec bool
	// Record is the parsed line.
	Record *mi.Record

	registry *Registry
	taken    bool
}

// NewDispatch prepares rec for dispatching against registry.
func NewDispatch(registry *Registry, t Token, exec bool, rec *mi.Record) *Dispatch {
	return &Dispatch{Token: t, Exec: exec, Record: rec, registry: registry}
}

// Context peeks at the context registered for the record's token.
func (d *Dispatch) Context() (*RequestContext, bool) {
	if d.Exec || d.taken || d.Token == NoToken {
		return nil, false
	}
	return d.registry.Lookup(d.Token)
}

// Is reports whether the record answers a request of kind k.
func (d *Dispatch) Is(k RequestKind) bool {
	ctx, ok := d.Context()
	return ok && ctx.Kind == k
}

// Take consumes the registered context and frees the token.
func (d *Dispatch) Take() *RequestContext {
	ctx := d.registry.Take(d.Token)
	d.taken = true
	return ctx
}

// Drain consumes the registered context if there is one.
func (d *Dispatch) Drain() (*RequestContext, bool) {
	if _, ok := d.Context(); !ok {
		return nil, false
	}
	return d.Take(), true
}

// Class returns the record's result class.
func (d *Dispatch) Class() mi.ResultClass {
	return d.Record.Class
}

// Handler is one link of the dispatch chain.
type Handler struct {
	Name string
	Fn   func(*Dispatch) Outcome
}

// Dispatcher runs a fixed, ordered chain of handlers. The first handler to
// consume a record wins.
type Dispatcher struct {
	handlers []Handler
	recorder Recorder
}

// NewDispatcher creates a dispatcher over handlers in the given order.
func NewDispatcher(recorder Recorder, handlers ...Handler) *Dispatcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Dispatcher{handlers: handlers, recorder: recorder}
}

// Handlers returns the handler names in chain order.
func (d *Dispatcher) Handlers() []string {
	names := make([]string, len(d.handlers))
	for i, h := range d.handlers {
		names[i] = h.Name
	}
	return names
}

// Dispatch offers x to each handler in order. It returns the name of the
// consuming handler, or "" when nobody claimed the record.
func (d *Dispatcher) Dispatch(x *Dispatch) string {
	start := time.Now()
	defer func() {
		d.recorder.RecordDispatch(time.Since(start))
	}()

	for _, h := range d.handlers {
		if h.Fn(x) == Consumed {
			return h.Name
		}
	}
	return ""
}

// Recorder receives engine counters. app.Metrics implements it.
type Recorder interface {
	RecordLine()
	RecordParseFailure()
	RecordDispatch(d time.Duration)
	RecordUnclaimed()
	RecordProtocolError()
	RecordInFlight(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordLine()                  {}
func (nopRecorder) RecordParseFailure()          {}
func (nopRecorder) RecordDispatch(time.Duration) {}
func (nopRecorder) RecordUnclaimed()             {}
func (nopRecorder) RecordProtocolError()         {}
func (nopRecorder) RecordInFlight(int)           {}
