package otelbridge

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/tracer"
)

// Forwarder is an OpenTelemetry SpanExporter that converts ended spans to
// tracer.FinishedSpan and hands them to native exporters, so the log
// collector, recorder and live stream work the same for both engines.
type Forwarder struct {
	service   string
	exporters []tracer.Exporter
}

var _ sdktrace.SpanExporter = (*Forwarder)(nil)

// NewForwarder creates a forwarder labelling spans with service.
func NewForwarder(service string, exporters ...tracer.Exporter) *Forwarder {
	return &Forwarder{service: service, exporters: exporters}
}

// ExportSpans implements sdktrace.SpanExporter.
func (f *Forwarder) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		finished := f.convert(s)
		for _, e := range f.exporters {
			e.Export(finished)
		}
	}
	return ctx.Err()
}

// Shutdown implements sdktrace.SpanExporter. Native exporters are shut
// down by their owners.
func (f *Forwarder) Shutdown(context.Context) error {
	return nil
}

func (f *Forwarder) convert(s sdktrace.ReadOnlySpan) tracer.FinishedSpan {
	attrs := s.Attributes()
	tags := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		tags[string(kv.Key)] = kv.Value.Emit()
	}

	parentID := ""
	if p := s.Parent(); p.IsValid() {
		parentID = p.SpanID().String()
	}

	return tracer.FinishedSpan{
		TraceID:   s.SpanContext().TraceID().String(),
		SpanID:    s.SpanContext().SpanID().String(),
		ParentID:  parentID,
		Name:      s.Name(),
		Service:   f.service,
		StartTime: s.StartTime(),
		EndTime:   s.EndTime(),
		Duration:  s.EndTime().Sub(s.StartTime()),
		Tags:      tags,
	}
}
