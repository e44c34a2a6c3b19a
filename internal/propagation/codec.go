package propagation

import (
	"fmt"
	"net/http"
	"strings"
)

// B3 header tokens. Lookups are case-insensitive.
const (
	HeaderTraceID      = "x-b3-traceid"
	HeaderSpanID       = "x-b3-spanid"
	HeaderParentSpanID = "x-b3-parentspanid"
)

// Message property keys. Queue messages carry no parent span id.
const (
	PropertyTraceID = "trace_id"
	PropertySpanID  = "span_id"
)

// Carrier is a string-keyed transport that can hold trace headers.
type Carrier interface {
	Get(key string) string
	Set(key, value string)
	Keys() []string
}

// MapCarrier adapts a plain header map. Get ignores key case.
type MapCarrier map[string]string

// Get returns the value for key, matching keys case-insensitively.
func (c MapCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	for k, v := range c {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set stores value under key.
func (c MapCarrier) Set(key, value string) {
	c[key] = value
}

// Keys lists the carrier's keys.
func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// HTTPCarrier adapts http.Header, which canonicalizes keys itself.
type HTTPCarrier http.Header

// Get returns the first value for key.
func (c HTTPCarrier) Get(key string) string {
	return http.Header(c).Get(key)
}

// Set replaces the values for key.
func (c HTTPCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// Keys lists the carrier's canonical keys.
func (c HTTPCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// ExtractFrom reads a trace context from carrier. Missing or blank trace
// or span tokens yield an empty context.
func ExtractFrom(carrier Carrier) (TraceContext, bool) {
	if carrier == nil {
		return TraceContext{}, false
	}
	tc := NewTraceContext(
		carrier.Get(HeaderTraceID),
		carrier.Get(HeaderSpanID),
		carrier.Get(HeaderParentSpanID),
	)
	return tc, !tc.IsEmpty()
}

// InjectInto writes tc into carrier, trimmed. An empty context writes
// nothing.
func InjectInto(tc TraceContext, carrier Carrier) {
	tc = NewTraceContext(tc.TraceID, tc.SpanID, tc.ParentSpanID)
	if carrier == nil || tc.IsEmpty() {
		return
	}
	carrier.Set(HeaderTraceID, tc.TraceID)
	carrier.Set(HeaderSpanID, tc.SpanID)
	if tc.ParentSpanID != "" {
		carrier.Set(HeaderParentSpanID, tc.ParentSpanID)
	}
}

// Extract reads a trace context from a header map.
func Extract(headers map[string]string) (TraceContext, bool) {
	if len(headers) == 0 {
		return TraceContext{}, false
	}
	return ExtractFrom(MapCarrier(headers))
}

// Inject writes tc into headers, allocating the map when nil.
func Inject(tc TraceContext, headers map[string]string) map[string]string {
	if headers == nil {
		headers = make(map[string]string, 3)
	}
	InjectInto(tc, MapCarrier(headers))
	return headers
}

// ExtractProperties reads a trace context from message metadata. Both
// keys must be present and non-blank; partial metadata is ignored.
func ExtractProperties(props map[string]any) (TraceContext, bool) {
	if len(props) == 0 {
		return TraceContext{}, false
	}
	traceID, ok := props[PropertyTraceID]
	if !ok || traceID == nil {
		return TraceContext{}, false
	}
	spanID, ok := props[PropertySpanID]
	if !ok || spanID == nil {
		return TraceContext{}, false
	}
	tc := NewTraceContext(fmt.Sprint(traceID), fmt.Sprint(spanID), "")
	return tc, !tc.IsEmpty()
}

// InjectProperties writes the trace and span id of tc into props,
// allocating the map when nil. An empty context writes nothing.
func InjectProperties(tc TraceContext, props map[string]any) map[string]any {
	if props == nil {
		props = make(map[string]any, 2)
	}
	tc = NewTraceContext(tc.TraceID, tc.SpanID, "")
	if tc.IsEmpty() {
		return props
	}
	props[PropertyTraceID] = tc.TraceID
	props[PropertySpanID] = tc.SpanID
	return props
}
