package tracer

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// Exporter receives finished spans. Export must not block for long; it is
// called on the goroutine that finished the span.
type Exporter interface {
	Export(span FinishedSpan)
}

// ExporterFunc adapts a function to Exporter
type ExporterFunc func(span FinishedSpan)

func (f ExporterFunc) Export(span FinishedSpan) { f(span) }

// LogExporter logs finished spans through zap from a background collector
type LogExporter struct {
	logger *zap.Logger
	spans  chan FinishedSpan
	done   chan struct{}
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewLogExporter creates a log exporter buffering up to size spans
func NewLogExporter(logger *zap.Logger, size int) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 1000
	}
	e := &LogExporter{
		logger: logger,
		spans:  make(chan FinishedSpan, size),
		done:   make(chan struct{}),
	}

	// Start span collector
	go e.collectSpans()

	return e
}

// Export queues a span for logging, dropping it when the buffer is full
func (e *LogExporter) Export(span FinishedSpan) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}

	select {
	case e.spans <- span:
	default:
		e.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
		)
	}
}

// Shutdown stops accepting spans and waits for the buffer to drain
func (e *LogExporter) Shutdown(ctx context.Context) error {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.spans)
		e.mu.Unlock()
	})

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// collectSpans processes completed spans
func (e *LogExporter) collectSpans() {
	defer close(e.done)
	for span := range e.spans {
		e.processSpan(span)
	}
}

// processSpan logs span data
func (e *LogExporter) processSpan(span FinishedSpan) {
	fields := []zap.Field{
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	}

	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.ParentID))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String("tag."+k, v))
	}

	if span.Tags["method.status"] == "FAILURE" {
		e.logger.Warn("span completed with failure", fields...)
	} else {
		e.logger.Info("span completed", fields...)
	}
}

// Recorder keeps the most recent finished spans in memory
type Recorder struct {
	mu    sync.RWMutex
	spans *queue.Queue
	limit int
}

// NewRecorder creates a recorder holding at most limit spans; a
// non-positive limit keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{spans: queue.New(), limit: limit}
}

// Export records span, evicting the oldest when full
func (r *Recorder) Export(span FinishedSpan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans.Add(span)
	for r.limit > 0 && r.spans.Length() > r.limit {
		r.spans.Remove()
	}
}

// Spans returns recorded spans, oldest first
func (r *Recorder) Spans() []FinishedSpan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]FinishedSpan, r.spans.Length())
	for i := range out {
		out[i] = r.spans.Get(i).(FinishedSpan)
	}
	return out
}

// Trace returns recorded spans belonging to traceID
func (r *Recorder) Trace(traceID string) []FinishedSpan {
	var out []FinishedSpan
	for _, s := range r.Spans() {
		if s.TraceID == traceID {
			out = append(out, s)
		}
	}
	return out
}

// Reset drops all recorded spans
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.spans = queue.New()
	r.mu.Unlock()
}
