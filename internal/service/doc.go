// Package service holds the demo order service that exercises trace
// propagation end to end.
//
// Orders.Place runs as a traced unit with a nested charge unit; the charge
// calls the payment gateway over HTTP with B3 headers, and the accepted
// order is published to the queue carrying trace_id and span_id. The
// consumer side dispatches through a Registry to Orders.HandlePlaced, whose
// fulfil span joins the same trace.
//
//	registry := service.NewRegistry()
//	orders := service.NewOrders(manager, broker, payments, logger)
//	orders.Register(registry)
//	consumer := messaging.NewConsumer(broker, manager, registry.Dispatch)
package service
