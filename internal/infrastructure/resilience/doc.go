/*
Package resilience provides a circuit breaker for graceful degradation.

# Overview

The tracing facade guards engine construction with a Breaker: when the
tracer keeps failing to build, callers get "tracer unavailable" at once
instead of paying for a failing construction on every traced call.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Automatic state transitions
- Injectable clock
- State change callbacks for monitoring
- Thread-safe operations

# Usage

	breaker := resilience.New("tracer", resilience.EngineSettings())

	err := breaker.Execute(func() error {
		engine, err = factory()
		return err
	})

# States

- Closed: Normal operation, requests pass through
- Open: Construction failing, calls rejected immediately
- Half-Open: One trial construction allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
