/*
Package tracing manages span lifecycles for units of work.

# Overview

The package sits between instrumented code and a recording engine. It
never lets a tracing failure change the behavior of the operation it
observes: every engine call is guarded, failures are logged with zap and
degrade to "no span".

# Components

  - Engine: the narrow capability the core needs from a tracer.
  - Facade: owns the registered engine; registers a default one on first
    use, at most once.
  - Manager: picks a parent, starts and activates a span, records the
    outcome, finishes the span and clears the unit's Store.
  - WithTracing / Trace: before and after hooks around an operation.

# Parent Selection

 1. The span already active in the context.
 2. The trace context held by the propagation Store in the context.
 3. None: a new root span.

# Usage

	facade := tracing.NewFacade(factory, tracing.WithLogger(logger))
	manager := tracing.NewManager(facade, logger, metrics)

	err := manager.WithTracing(ctx, tracing.Descriptor{
		Component: "OrderService",
		Operation: "charge",
	}, func(ctx context.Context) error {
		return charge(ctx, order)
	})

# Span Tags

	class.name         descriptor component
	method.name        descriptor operation
	method.parameters  descriptor arguments, when non-blank
	method.status      SUCCESS or FAILURE
*/
package tracing
