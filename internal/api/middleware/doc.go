// Package middleware provides the Gin middleware stack of the HTTP server.
//
// Middleware stack includes:
//   - Tracing: continues the caller's B3 trace for every request and
//     clears the request's trace context when it ends
//   - CORS: allows B3 request headers and exposes them on responses
//   - RateLimit: per-IP token bucket; rejections carry the trace id
//
// Transport is the client-side counterpart of Tracing: it copies the trace
// context of the request's context.Context into outgoing B3 headers.
//
// Example Usage:
//
//	router.Use(middleware.Tracing(manager))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//
//	client := &http.Client{Transport: &middleware.Transport{}}
package middleware
