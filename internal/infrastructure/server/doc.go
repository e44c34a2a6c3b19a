// Package server wires the tracing core to its triggers and runs them.
//
// This package orchestrates all components:
//   - Tracing engine selection (native or OpenTelemetry) behind the facade
//   - HTTP routing with Gin and its middleware stack
//   - gRPC server with tracing interceptors and health service
//   - In-process order queue and its consumer workers
//   - Prometheus registry and the JSON metrics view
//
// Server Lifecycle:
//  1. Load configuration from environment or a config file
//  2. Initialize logger and metrics
//  3. Build the tracing facade and span lifecycle manager
//  4. Create the broker, order service and topic registry
//  5. Setup HTTP routes and middleware
//  6. Bind listeners and start serving
//  7. Graceful shutdown: stop listeners, drain the queue, flush spans
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
