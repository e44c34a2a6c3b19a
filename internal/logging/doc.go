// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Loggers can be correlated with the request being served: WithTrace
// reads the trace context stored in a context.Context and attaches
// trace_id and span_id fields to every entry.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.WithTrace(ctx).Info("charging card", zap.String("order", id))
package logging
