package otelbridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/otelbridge"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/tracer"
	"github.com/GriffinCanCode/tracectx/internal/propagation"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

const (
	inboundTrace = "463ac35c9f6413ad48485a3953bb6124"
	inboundSpan  = "a2fb4a1d1a96d312"
)

func newBridge(t *testing.T) (*otelbridge.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	engine := otelbridge.New("test", zap.NewNop(), otelbridge.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = engine.Shutdown(context.Background()) })
	return engine, rec
}

func newManager(t *testing.T) (*tracing.Manager, *tracetest.SpanRecorder) {
	t.Helper()
	engine, rec := newBridge(t)
	facade := tracing.NewFacade(func() (tracing.Engine, error) { return engine, nil })
	return tracing.NewManager(facade, zap.NewNop(), nil), rec
}

func attrMap(span sdktrace.ReadOnlySpan) map[string]string {
	out := make(map[string]string)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestExtract(t *testing.T) {
	engine, _ := newBridge(t)

	tests := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{
			name:    "lowercase",
			headers: map[string]string{"x-b3-traceid": inboundTrace, "x-b3-spanid": inboundSpan},
		},
		{
			name:    "mixed case",
			headers: map[string]string{"X-B3-TraceId": inboundTrace, "X-B3-SpanId": inboundSpan},
		},
		{
			name:    "with parent",
			headers: map[string]string{"x-b3-traceid": inboundTrace, "x-b3-spanid": inboundSpan, "x-b3-parentspanid": "00f067aa0ba902b7"},
		},
		{
			name:    "non-hex ids",
			headers: map[string]string{"x-b3-traceid": "abc", "x-b3-spanid": "123"},
			wantErr: true,
		},
		{
			name:    "missing span",
			headers: map[string]string{"x-b3-traceid": inboundTrace},
			wantErr: true,
		},
		{
			name:    "empty",
			headers: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := engine.Extract(tt.headers)
			if tt.wantErr {
				assert.ErrorIs(t, err, otelbridge.ErrInvalidSpanContext)
				assert.Nil(t, sc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, inboundTrace, sc.TraceID())
			assert.Equal(t, inboundSpan, sc.SpanID())
		})
	}
}

func TestManagerChildOfInboundHeaders(t *testing.T) {
	m, rec := newManager(t)

	ctx, store := propagation.EnsureStore(context.Background())
	store.Set(inboundTrace, inboundSpan)

	var inside propagation.TraceContext
	err := m.WithTracing(ctx, tracing.Descriptor{Component: "OrderService", Operation: "charge", Arguments: "order=7"},
		func(ctx context.Context) error {
			inside, _ = propagation.FromContext(ctx)
			return nil
		})
	require.NoError(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	span := ended[0]

	assert.Equal(t, "method:charge", span.Name())
	assert.Equal(t, inboundTrace, span.SpanContext().TraceID().String())
	assert.Equal(t, inboundSpan, span.Parent().SpanID().String())
	assert.True(t, span.Parent().IsRemote())
	assert.Equal(t, span.SpanContext().SpanID().String(), inside.SpanID)
	assert.Equal(t, inboundTrace, inside.TraceID)

	attrs := attrMap(span)
	assert.Equal(t, "OrderService", attrs[tracing.TagClassName])
	assert.Equal(t, "charge", attrs[tracing.TagMethodName])
	assert.Equal(t, "order=7", attrs[tracing.TagParameters])
	assert.Equal(t, "SUCCESS", attrs[tracing.TagStatus])
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestManagerNonHexStoredContextStartsRoot(t *testing.T) {
	m, rec := newManager(t)

	ctx, store := propagation.EnsureStore(context.Background())
	store.Set("abc", "123")

	require.NoError(t, m.WithTracing(ctx, tracing.Descriptor{Component: "C", Operation: "op"},
		func(context.Context) error { return nil }))

	span := rec.Ended()[0]
	assert.False(t, span.Parent().IsValid())
	assert.NotEqual(t, "abc", span.SpanContext().TraceID().String())
}

func TestNestedSpansShareTrace(t *testing.T) {
	m, rec := newManager(t)

	err := m.WithTracing(context.Background(), tracing.Descriptor{Component: "Orders", Operation: "place"},
		func(ctx context.Context) error {
			assert.True(t, oteltrace.SpanContextFromContext(ctx).IsValid(), "span visible to otel instrumentation")
			return m.WithTracing(ctx, tracing.Descriptor{Component: "Payments", Operation: "charge"},
				func(context.Context) error { return nil })
		})
	require.NoError(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	child, parent := ended[0], ended[1]

	assert.False(t, parent.Parent().IsValid())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.False(t, child.Parent().IsRemote())
}

func TestFailureMarksErrorStatus(t *testing.T) {
	m, rec := newManager(t)

	err := m.WithTracing(context.Background(), tracing.Descriptor{Component: "C", Operation: "op"},
		func(context.Context) error { return errors.New("declined") })
	require.Error(t, err)

	span := rec.Ended()[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "FAILURE", attrMap(span)[tracing.TagStatus])
}

func TestForeignParent(t *testing.T) {
	engine, rec := newBridge(t)

	parent := tracer.NewSpanContext("48485a3953bb6124", inboundSpan)
	span := engine.BuildSpan("child").AsChildOf(parent).WithTag("k", "v").Start()
	span.Finish()

	got := rec.Ended()[0]
	assert.Equal(t, "000000000000000048485a3953bb6124", got.SpanContext().TraceID().String())
	assert.Equal(t, inboundSpan, got.Parent().SpanID().String())
	assert.Contains(t, got.Attributes(), attribute.String("k", "v"))

	rootSpan := engine.BuildSpan("root").AsChildOf(tracer.NewSpanContext("abc", "123")).Start()
	rootSpan.Finish()
	assert.False(t, rec.Ended()[1].Parent().IsValid(), "unparseable parent yields a root")
}

func TestInject(t *testing.T) {
	engine, _ := newBridge(t)

	span := engine.BuildSpan("outbound").Start()
	ctx, scope := engine.ActivateSpan(context.Background(), span)
	defer span.Finish()
	defer scope.Close()

	headers := map[string]string{}
	engine.Inject(ctx, headers)

	assert.Equal(t, span.Context().TraceID(), headers["x-b3-traceid"])
	assert.Equal(t, span.Context().SpanID(), headers["x-b3-spanid"])
	assert.Equal(t, "1", headers["x-b3-sampled"])
}

func TestActiveSpan(t *testing.T) {
	engine, _ := newBridge(t)

	span := engine.BuildSpan("op").Start()
	ctx, scope := engine.ActivateSpan(context.Background(), span)
	assert.Same(t, span, engine.ActiveSpan(ctx))

	scope.Close()
	assert.Nil(t, engine.ActiveSpan(ctx))
	span.Finish()
}

func TestForwarderFeedsNativeExporters(t *testing.T) {
	rec := tracer.NewRecorder(0)
	engine := otelbridge.New("orders", zap.NewNop(),
		otelbridge.WithSyncer(otelbridge.NewForwarder("orders", rec)))
	t.Cleanup(func() { _ = engine.Shutdown(context.Background()) })

	facade := tracing.NewFacade(func() (tracing.Engine, error) { return engine, nil })
	manager := tracing.NewManager(facade, zap.NewNop(), nil)

	ctx, store := propagation.EnsureStore(context.Background())
	store.Set(inboundTrace, inboundSpan)
	err := manager.WithTracing(ctx, tracing.Descriptor{Component: "OrderService", Operation: "place"},
		func(ctx context.Context) error { return errors.New("declined") })
	require.Error(t, err)

	spans := rec.Spans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, inboundTrace, got.TraceID)
	assert.Equal(t, inboundSpan, got.ParentID)
	assert.Equal(t, "method:place", got.Name)
	assert.Equal(t, "orders", got.Service)
	assert.Equal(t, tracing.StatusFailure, got.Tags[tracing.TagStatus])
	assert.Equal(t, got.EndTime.Sub(got.StartTime), got.Duration)
}
