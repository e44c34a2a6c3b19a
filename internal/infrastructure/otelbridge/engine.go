package otelbridge

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

// ErrInvalidSpanContext is returned by Extract when the carrier holds no
// trace context the B3 propagator accepts.
var ErrInvalidSpanContext = errors.New("carrier holds no valid B3 span context")

const instrumentationName = "github.com/GriffinCanCode/tracectx"

// Engine adapts an OpenTelemetry TracerProvider to tracing.Engine.
type Engine struct {
	provider   *sdktrace.TracerProvider
	tracer     oteltrace.Tracer
	propagator propagation.TextMapPropagator
	logger     *zap.Logger
}

var _ tracing.Engine = (*Engine)(nil)

type options struct {
	processors []sdktrace.SpanProcessor
	attrs      []attribute.KeyValue
}

// Option configures the bridge.
type Option func(*options)

// WithSpanProcessor adds a span processor to the provider.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) {
		if p != nil {
			o.processors = append(o.processors, p)
		}
	}
}

// WithSyncer exports every span synchronously as it ends.
func WithSyncer(exporter sdktrace.SpanExporter) Option {
	return WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter))
}

// WithAttributes adds attributes to every span the bridge starts.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// New creates an engine with its own TracerProvider. Every span is
// sampled; B3 multi-header encoding is used for extraction.
func New(service string, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	for _, p := range o.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(p))
	}
	provider := sdktrace.NewTracerProvider(providerOpts...)

	attrs := append([]attribute.KeyValue{attribute.String("service.name", service)}, o.attrs...)

	return &Engine{
		provider:   provider,
		tracer:     provider.Tracer(instrumentationName, oteltrace.WithInstrumentationAttributes(attrs...)),
		propagator: b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)),
		logger:     logger.Named("otel"),
	}
}

// Provider exposes the underlying provider for callers that install it
// globally.
func (e *Engine) Provider() *sdktrace.TracerProvider {
	return e.provider
}

// BuildSpan implements tracing.Engine.
func (e *Engine) BuildSpan(name string) tracing.SpanBuilder {
	return &spanBuilder{engine: e, name: name}
}

// ActivateSpan implements tracing.Engine. The span is also placed in the
// OpenTelemetry context so instrumented libraries see it as current.
func (e *Engine) ActivateSpan(ctx context.Context, span tracing.Span) (context.Context, tracing.Scope) {
	if s, ok := span.(*Span); ok {
		ctx = oteltrace.ContextWithSpan(ctx, s.span)
	}
	return tracing.Activate(ctx, span)
}

// ActiveSpan implements tracing.Engine.
func (e *Engine) ActiveSpan(ctx context.Context) tracing.Span {
	return tracing.ActiveFrom(ctx)
}

// Extract implements tracing.Engine. Header names are matched without
// regard to case. Ids that are not valid hex are rejected.
func (e *Engine) Extract(headers map[string]string) (tracing.SpanContext, error) {
	carrier := make(propagation.MapCarrier, len(headers))
	for k, v := range headers {
		carrier[strings.ToLower(k)] = v
	}

	sc := oteltrace.SpanContextFromContext(e.propagator.Extract(context.Background(), carrier))
	if !sc.IsValid() {
		return nil, ErrInvalidSpanContext
	}
	return SpanContext{sc: sc}, nil
}

// Inject writes the B3 headers for the span active in ctx into carrier.
func (e *Engine) Inject(ctx context.Context, carrier map[string]string) {
	if s, ok := tracing.ActiveFrom(ctx).(*Span); ok {
		ctx = oteltrace.ContextWithSpan(ctx, s.span)
	}
	e.propagator.Inject(ctx, propagation.MapCarrier(carrier))
}

// Shutdown flushes and stops the provider.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Debug("shutting down tracer provider")
	return e.provider.Shutdown(ctx)
}

// SpanContext wraps an OpenTelemetry span context.
type SpanContext struct {
	sc oteltrace.SpanContext
}

func (c SpanContext) TraceID() string { return c.sc.TraceID().String() }
func (c SpanContext) SpanID() string  { return c.sc.SpanID().String() }

// Span wraps an OpenTelemetry span.
type Span struct {
	span oteltrace.Span
}

// Context implements tracing.Span.
func (s *Span) Context() tracing.SpanContext {
	return SpanContext{sc: s.span.SpanContext()}
}

// SetTag records key as a string attribute. A FAILURE status tag also
// marks the span as errored.
func (s *Span) SetTag(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
	if key == tracing.TagStatus && value == tracing.StatusFailure {
		s.span.SetStatus(codes.Error, value)
	}
}

// Finish implements tracing.Span.
func (s *Span) Finish() {
	s.span.End()
}

type spanBuilder struct {
	engine *Engine
	name   string
	parent oteltrace.SpanContext
	attrs  []attribute.KeyValue
}

func (b *spanBuilder) AsChildOf(parent tracing.SpanContext) tracing.SpanBuilder {
	switch p := parent.(type) {
	case nil:
	case SpanContext:
		b.parent = p.sc
	default:
		if sc, ok := foreignParent(p); ok {
			b.parent = sc
		} else {
			b.engine.logger.Debug("ignoring parent with non-hex ids",
				zap.String("trace_id", p.TraceID()),
				zap.String("span_id", p.SpanID()),
			)
		}
	}
	return b
}

func (b *spanBuilder) WithTag(key, value string) tracing.SpanBuilder {
	b.attrs = append(b.attrs, attribute.String(key, value))
	return b
}

func (b *spanBuilder) Start() tracing.Span {
	ctx := context.Background()
	opts := []oteltrace.SpanStartOption{oteltrace.WithAttributes(b.attrs...)}
	if b.parent.IsValid() {
		ctx = oteltrace.ContextWithSpanContext(ctx, b.parent)
	} else {
		opts = append(opts, oteltrace.WithNewRoot())
	}

	_, span := b.engine.tracer.Start(ctx, b.name, opts...)
	return &Span{span: span}
}

// foreignParent converts a span context from another engine. 64-bit trace
// ids are left-padded to 128 bits the way B3 does.
func foreignParent(p tracing.SpanContext) (oteltrace.SpanContext, bool) {
	traceHex := p.TraceID()
	if len(traceHex) == 16 {
		traceHex = strings.Repeat("0", 16) + traceHex
	}
	traceID, err := oteltrace.TraceIDFromHex(traceHex)
	if err != nil {
		return oteltrace.SpanContext{}, false
	}
	spanID, err := oteltrace.SpanIDFromHex(p.SpanID())
	if err != nil {
		return oteltrace.SpanContext{}, false
	}
	return oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: oteltrace.FlagsSampled,
		Remote:     true,
	}), true
}
