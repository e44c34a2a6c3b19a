/*
Package tracer is the default tracing engine.

# Overview

This package implements a lightweight span recorder behind the
tracing.Engine interface. It follows OpenTelemetry concepts with a minimal
implementation: spans carry B3-compatible hex identifiers, are activated
through context.Context, and are handed to exporters when finished.

# Features

- 128-bit time-ordered trace IDs, 64-bit span IDs
- B3 header extraction that keeps foreign identifiers verbatim
- Exactly-once export per span
- Buffered zap logging of finished spans (LogExporter)
- Bounded in-memory recording for tests and debugging (Recorder)

# Usage

	recorder := tracer.NewRecorder(1000)
	engine := tracer.New("orders", logger.Logger,
		tracer.WithExporter(tracer.NewLogExporter(logger.Logger, 1000)),
		tracer.WithExporter(recorder),
	)

	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		return engine, nil
	})

# Performance

- Buffered log collection (1000 spans by default), dropped when full
- Export runs on the finishing goroutine; exporters must not block
*/
package tracer
