package propagation

import (
	"context"
	"strings"
	"sync"
)

// TraceContext identifies a position in a trace.
// TraceID and SpanID are either both set or both empty.
type TraceContext struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// NewTraceContext builds a context, returning the zero value if the trace
// or span id is blank.
func NewTraceContext(traceID, spanID, parentSpanID string) TraceContext {
	traceID = strings.TrimSpace(traceID)
	spanID = strings.TrimSpace(spanID)
	if traceID == "" || spanID == "" {
		return TraceContext{}
	}
	return TraceContext{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: strings.TrimSpace(parentSpanID),
	}
}

// IsEmpty reports whether the context carries no identifiers.
func (tc TraceContext) IsEmpty() bool {
	return strings.TrimSpace(tc.TraceID) == "" || strings.TrimSpace(tc.SpanID) == ""
}

// Child returns the context a span started under tc would see as its
// parent lineage.
func (tc TraceContext) Child(spanID string) TraceContext {
	if tc.IsEmpty() {
		return TraceContext{}
	}
	return NewTraceContext(tc.TraceID, spanID, tc.SpanID)
}

// Store holds the trace context of a single unit of work.
// The zero value is ready to use and a nil *Store reads as empty.
type Store struct {
	mu sync.RWMutex
	tc TraceContext
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set overwrites the stored pair. A blank trace or span id clears the
// store instead and returns false.
func (s *Store) Set(traceID, spanID string) bool {
	return s.SetContext(NewTraceContext(traceID, spanID, ""))
}

// SetContext overwrites the stored context, keeping its parent span id.
func (s *Store) SetContext(tc TraceContext) bool {
	if s == nil {
		return false
	}
	tc = NewTraceContext(tc.TraceID, tc.SpanID, tc.ParentSpanID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tc = tc
	return !tc.IsEmpty()
}

// Get returns the stored context.
func (s *Store) Get() (TraceContext, bool) {
	if s == nil {
		return TraceContext{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tc, !s.tc.IsEmpty()
}

// Clear removes the stored context. Safe to call repeatedly.
func (s *Store) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.tc = TraceContext{}
	s.mu.Unlock()
}

type storeKey struct{}

// WithStore attaches s to ctx.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// StoreFrom returns the store attached to ctx, or nil.
func StoreFrom(ctx context.Context) *Store {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(storeKey{}).(*Store)
	return s
}

// EnsureStore returns the store attached to ctx, attaching a new one if
// there is none.
func EnsureStore(ctx context.Context) (context.Context, *Store) {
	if s := StoreFrom(ctx); s != nil {
		return ctx, s
	}
	s := NewStore()
	return WithStore(ctx, s), s
}

// FromContext reads the trace context stored in ctx.
func FromContext(ctx context.Context) (TraceContext, bool) {
	return StoreFrom(ctx).Get()
}
