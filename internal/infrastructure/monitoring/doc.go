/*
Package monitoring provides Prometheus metrics for the tracing service.

# Overview

Metrics implements tracing.Observer, so the span lifecycle reports spans
started (labelled by where the parent came from), spans finished by
outcome, unit durations and store teardowns. The same collector tracks
HTTP requests, gRPC calls and the in-process queue.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	facade := tracing.NewFacade(factory, tracing.WithObserver(metrics))
	router.Use(monitoring.Middleware(metrics))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
