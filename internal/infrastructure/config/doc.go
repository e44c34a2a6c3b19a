// Package config provides 12-factor configuration management for the
// tracing service.
//
// Configuration is loaded from environment variables with sensible defaults,
// or from a YAML file when one is given on the command line.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - GRPC: gRPC server settings
//   - Tracing: Engine selection (native or otel), service name, span buffer
//   - Queue: In-process broker workers and capacity
//   - Logging: Log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, GRPC_PORT, GRPC_ENABLED
//   - TRACING_SERVICE, TRACING_ENGINE, TRACING_SPAN_BUFFER, TRACING_ENABLED
//   - QUEUE_WORKERS, QUEUE_CAPACITY
//   - LOG_LEVEL, LOG_DEV
package config
