// Package messaging is an in-process message queue that carries trace
// context across the asynchronous hop.
//
// Publish copies the publisher's trace and span id into the message
// properties (trace_id, span_id). A Consumer runs a fixed pool of worker
// goroutines; each message is handled as a traced unit whose span is a
// child of the publisher's span, and the worker's trace context is
// cleared before it takes the next message.
//
//	broker := messaging.NewBroker(1024)
//	consumer := messaging.NewConsumer(broker, manager, handle, messaging.WithWorkers(4))
//	go consumer.Run(ctx)
//
//	broker.Publish(ctx, "orders", body)
package messaging
