package tracer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogExporterLogsSpans(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	exp := NewLogExporter(zap.New(core), 10)

	exp.Export(FinishedSpan{TraceID: "t1", SpanID: "s1", ParentID: "p1", Name: "ok", Tags: map[string]string{"method.status": "SUCCESS"}})
	exp.Export(FinishedSpan{TraceID: "t1", SpanID: "s2", Name: "bad", Tags: map[string]string{"method.status": "FAILURE"}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, exp.Shutdown(ctx))

	require.Equal(t, 1, logs.FilterMessage("span completed").Len())
	require.Equal(t, 1, logs.FilterMessage("span completed with failure").Len())

	entry := logs.FilterMessage("span completed").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "t1", fields["trace_id"])
	assert.Equal(t, "p1", fields["parent_id"])
	assert.Equal(t, "SUCCESS", fields["tag.method.status"])
}

func TestLogExporterDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	exp := &LogExporter{
		logger: zap.New(core),
		spans:  make(chan FinishedSpan, 1),
		done:   make(chan struct{}),
	}

	// No collector running, so the second span cannot be buffered
	exp.Export(FinishedSpan{TraceID: "t", SpanID: "1"})
	exp.Export(FinishedSpan{TraceID: "t", SpanID: "2"})

	assert.Equal(t, 1, logs.FilterMessage("span buffer full, dropping span").Len())
}

func TestLogExporterShutdownIdempotent(t *testing.T) {
	exp := NewLogExporter(nil, 0)
	ctx := context.Background()

	require.NoError(t, exp.Shutdown(ctx))
	require.NoError(t, exp.Shutdown(ctx))

	assert.NotPanics(t, func() { exp.Export(FinishedSpan{}) })
}

func TestRecorderLimit(t *testing.T) {
	rec := NewRecorder(3)
	for i := 0; i < 5; i++ {
		rec.Export(FinishedSpan{TraceID: "t", SpanID: fmt.Sprint(i)})
	}

	spans := rec.Spans()
	require.Len(t, spans, 3)
	assert.Equal(t, "2", spans[0].SpanID)
	assert.Equal(t, "4", spans[2].SpanID)
}

func TestRecorderTraceAndReset(t *testing.T) {
	rec := NewRecorder(0)
	rec.Export(FinishedSpan{TraceID: "a", SpanID: "1"})
	rec.Export(FinishedSpan{TraceID: "b", SpanID: "2"})
	rec.Export(FinishedSpan{TraceID: "a", SpanID: "3"})

	assert.Len(t, rec.Trace("a"), 2)
	assert.Empty(t, rec.Trace("c"))

	rec.Reset()
	assert.Empty(t, rec.Spans())
}

func TestTracerShutdownFlushesLogExporter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := New("svc", nil, WithExporter(NewLogExporter(zap.New(core), 10)))

	tr.BuildSpan("s").Start().Finish()
	require.NoError(t, tr.Shutdown(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("span completed").Len())
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	first, cancelFirst := b.Subscribe(4)
	second, cancelSecond := b.Subscribe(4)
	defer cancelSecond()

	assert.Equal(t, 2, b.Subscribers())

	b.Export(FinishedSpan{SpanID: "s1"})
	assert.Equal(t, "s1", (<-first).SpanID)
	assert.Equal(t, "s1", (<-second).SpanID)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())

	b.Export(FinishedSpan{SpanID: "s2"})
	assert.Equal(t, "s2", (<-second).SpanID)
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	for i := 0; i < 3; i++ {
		b.Export(FinishedSpan{SpanID: fmt.Sprintf("s%d", i)})
	}

	assert.Equal(t, "s0", (<-ch).SpanID)
	assert.Equal(t, int64(2), b.Dropped())
}
