// Package ws streams finished spans to WebSocket clients as they complete.
//
// Each connection subscribes to a tracer.Broadcaster and receives one JSON
// frame per span. A slow client loses spans instead of holding up the
// traced code.
//
// Frames (Server → Client):
//   - system: subscription confirmed
//   - span: one finished span
//
// Example Usage:
//
//	handler := ws.NewHandler(broadcaster, logger)
//	router.GET("/debug/spans/stream", handler.HandleConnection)
//
// Connect with ?trace_id=<id> to follow a single trace.
package ws
