package tracing

import (
	"context"
	"sync/atomic"
)

// SpanContext is the propagated identity of a span.
type SpanContext interface {
	TraceID() string
	SpanID() string
}

// Span is a started span owned by the engine.
type Span interface {
	Context() SpanContext
	SetTag(key, value string)
	Finish()
}

// Scope marks a span as the active one for a context until closed.
type Scope interface {
	Span() Span
	Close()
}

// SpanBuilder configures a span before it starts.
type SpanBuilder interface {
	AsChildOf(parent SpanContext) SpanBuilder
	WithTag(key, value string) SpanBuilder
	Start() Span
}

// Engine is the recording backend. The core uses nothing beyond this set.
type Engine interface {
	BuildSpan(name string) SpanBuilder
	ActivateSpan(ctx context.Context, span Span) (context.Context, Scope)
	ActiveSpan(ctx context.Context) Span
	Extract(carrier map[string]string) (SpanContext, error)
}

// activation links a span activated in a context to the one it shadows.
type activation struct {
	span   Span
	prev   *activation
	closed atomic.Bool
}

func (a *activation) Span() Span {
	return a.span
}

func (a *activation) Close() {
	a.closed.Store(true)
}

type activationKey struct{}

// Activate marks span as active in the returned context. Engines without
// their own scope handling can delegate ActivateSpan and ActiveSpan to
// Activate and ActiveFrom.
func Activate(ctx context.Context, span Span) (context.Context, Scope) {
	prev, _ := ctx.Value(activationKey{}).(*activation)
	a := &activation{span: span, prev: prev}
	return context.WithValue(ctx, activationKey{}, a), a
}

// ActiveFrom returns the innermost span activated in ctx whose scope is
// still open, or nil.
func ActiveFrom(ctx context.Context) Span {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(activationKey{}).(*activation)
	for ; a != nil; a = a.prev {
		if !a.closed.Load() {
			return a.span
		}
	}
	return nil
}
