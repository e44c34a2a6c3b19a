// Package main is the entry point for the tracectx server.
//
// The server continues distributed traces across HTTP requests, gRPC
// calls and queued messages, and demonstrates it with a small order
// workflow: an HTTP request places an order, the order service charges a
// payment gateway and publishes to the queue, and a consumer fulfils the
// order, all inside one trace.
//
// Configuration:
//   - Environment variables (12-factor)
//   - A YAML or TOML file given with --config
//   - CLI flags (override both)
//
// Usage:
//
//	# Serve with environment configuration
//	tracectx serve
//
//	# Serve from a file, development logging
//	tracectx serve --config tracectx.yaml --dev
//
//	# Check configuration
//	tracectx config --config tracectx.toml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
