package tracer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/propagation"
	"github.com/GriffinCanCode/tracectx/internal/shared/id"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

// ErrSpanContextNotFound is returned by Extract when the carrier holds no
// usable trace context.
var ErrSpanContextNotFound = errors.New("span context not found in carrier")

// SpanContext is the identity of a span.
type SpanContext struct {
	traceID string
	spanID  string
}

// NewSpanContext creates a span context from raw identifiers.
func NewSpanContext(traceID, spanID string) SpanContext {
	return SpanContext{traceID: traceID, spanID: spanID}
}

func (c SpanContext) TraceID() string { return c.traceID }
func (c SpanContext) SpanID() string  { return c.spanID }

// FinishedSpan is the immutable record of a completed span
type FinishedSpan struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Name      string
	Service   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Tags      map[string]string
}

// Span represents a single operation in a trace
type Span struct {
	tracer    *Tracer
	context   SpanContext
	parentID  string
	name      string
	startTime time.Time

	mu       sync.Mutex
	tags     map[string]string
	finished atomic.Bool
}

// Context returns the span's identity
func (s *Span) Context() tracing.SpanContext {
	return s.context
}

// ParentID returns the parent span id, empty for a root span
func (s *Span) ParentID() string {
	return s.parentID
}

// SetTag adds a tag to the span. Tags set after Finish are dropped.
func (s *Span) SetTag(key, value string) {
	if s.finished.Load() {
		return
	}
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
}

// Tag returns a tag value
func (s *Span) Tag(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tags[key]
	return v, ok
}

// Finish marks the span as complete and exports it. Only the first call
// has an effect.
func (s *Span) Finish() {
	if !s.finished.CompareAndSwap(false, true) {
		return
	}
	end := s.tracer.now()

	s.mu.Lock()
	tags := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	s.mu.Unlock()

	s.tracer.export(FinishedSpan{
		TraceID:   s.context.traceID,
		SpanID:    s.context.spanID,
		ParentID:  s.parentID,
		Name:      s.name,
		Service:   s.tracer.service,
		StartTime: s.startTime,
		EndTime:   end,
		Duration:  end.Sub(s.startTime),
		Tags:      tags,
	})
}

// Tracer is the default engine: it assigns B3-compatible ids and hands
// finished spans to its exporters.
type Tracer struct {
	service   string
	logger    *zap.Logger
	ids       *id.Generator
	now       func() time.Time
	exporters []Exporter
}

// Option configures a Tracer
type Option func(*Tracer)

// WithExporter adds an exporter for finished spans
func WithExporter(e Exporter) Option {
	return func(t *Tracer) {
		if e != nil {
			t.exporters = append(t.exporters, e)
		}
	}
}

// WithIDGenerator overrides the id generator
func WithIDGenerator(g *id.Generator) Option {
	return func(t *Tracer) {
		if g != nil {
			t.ids = g
		}
	}
}

// WithClock overrides the span clock
func WithClock(now func() time.Time) Option {
	return func(t *Tracer) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		ids:     id.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BuildSpan starts configuring a span
func (t *Tracer) BuildSpan(name string) tracing.SpanBuilder {
	return &spanBuilder{tracer: t, name: name, tags: make(map[string]string, 4)}
}

// ActivateSpan marks span as active in the returned context
func (t *Tracer) ActivateSpan(ctx context.Context, span tracing.Span) (context.Context, tracing.Scope) {
	return tracing.Activate(ctx, span)
}

// ActiveSpan returns the innermost open span in ctx
func (t *Tracer) ActiveSpan(ctx context.Context) tracing.Span {
	return tracing.ActiveFrom(ctx)
}

// Extract reads a span context from B3 headers. Identifiers are kept
// verbatim so foreign id formats survive the hop.
func (t *Tracer) Extract(carrier map[string]string) (tracing.SpanContext, error) {
	tc, ok := propagation.Extract(carrier)
	if !ok {
		return nil, ErrSpanContextNotFound
	}
	return NewSpanContext(tc.TraceID, tc.SpanID), nil
}

// Shutdown flushes exporters that buffer spans
func (t *Tracer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, e := range t.exporters {
		if s, ok := e.(interface{ Shutdown(context.Context) error }); ok {
			if err := s.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t *Tracer) export(span FinishedSpan) {
	for _, e := range t.exporters {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("span exporter panicked",
						zap.String("trace_id", span.TraceID),
						zap.String("span_id", span.SpanID),
						zap.Error(fmt.Errorf("panic: %v", r)),
					)
				}
			}()
			e.Export(span)
		}()
	}
}

type spanBuilder struct {
	tracer *Tracer
	name   string
	parent tracing.SpanContext
	tags   map[string]string
}

func (b *spanBuilder) AsChildOf(parent tracing.SpanContext) tracing.SpanBuilder {
	b.parent = parent
	return b
}

func (b *spanBuilder) WithTag(key, value string) tracing.SpanBuilder {
	b.tags[key] = value
	return b
}

func (b *spanBuilder) Start() tracing.Span {
	t := b.tracer

	traceID := ""
	parentID := ""
	if b.parent != nil && b.parent.TraceID() != "" && b.parent.SpanID() != "" {
		traceID = b.parent.TraceID()
		parentID = b.parent.SpanID()
	}
	if traceID == "" {
		traceID = t.ids.TraceID().String()
	}

	return &Span{
		tracer:    t,
		context:   NewSpanContext(traceID, t.ids.SpanID().String()),
		parentID:  parentID,
		name:      b.name,
		startTime: t.now(),
		tags:      b.tags,
	}
}
