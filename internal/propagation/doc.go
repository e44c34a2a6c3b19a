/*
Package propagation carries trace context between units of work.

# Overview

A TraceContext is the (trace id, span id, parent span id) triple that links
a span to its trace. Two pieces live here:

  - Store: the context owned by the current unit of work, reached through
    context.Context rather than goroutine-local state.
  - Codec: B3 header and message property encoding.

# Header Format

	x-b3-traceid:      trace identifier
	x-b3-spanid:       span identifier
	x-b3-parentspanid: parent span identifier (optional)

Keys are matched case-insensitively. A carrier missing either the trace or
span token carries no context and the receiver starts a new root span.

# Message Properties

Queue messages use trace_id and span_id. Both must be present; partial
metadata is treated as absent.

# Usage

	ctx, store := propagation.EnsureStore(ctx)
	if tc, ok := propagation.Extract(headers); ok {
		store.SetContext(tc)
	}
	defer store.Clear()
*/
package propagation
