// Package otelbridge implements tracing.Engine on top of the OpenTelemetry
// SDK. Inbound B3 headers are decoded with the contrib B3 propagator, so
// only hex trace and span ids are accepted; anything else starts a new
// root trace.
//
// Select it with TRACING_ENGINE=otel.
package otelbridge
