package messaging

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracectx/internal/logging"
	"github.com/GriffinCanCode/tracectx/internal/propagation"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

// QueueComponent is the class.name tag of message handling spans.
const QueueComponent = "queue"

// Handler processes one message. ctx carries the message's span.
type Handler func(ctx context.Context, msg *Message) error

// Consumer drains a Broker with a fixed pool of workers. Each worker owns
// one boundary store for its lifetime; the store is filled from the
// message properties before handling and cleared right after, so the next
// message on that worker starts clean.
type Consumer struct {
	broker  *Broker
	manager *tracing.Manager
	handler Handler
	workers int
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithWorkers sets the worker count.
func WithWorkers(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithConsumerMetrics records handled messages.
func WithConsumerMetrics(m *monitoring.Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(logger *zap.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer creates a consumer that runs handler for each message.
func NewConsumer(broker *Broker, manager *tracing.Manager, handler Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		broker:  broker,
		manager: manager,
		handler: handler,
		workers: 1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts the workers and blocks until ctx is done or the broker is
// closed and drained.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (c *Consumer) work(ctx context.Context, id int) {
	boundary := propagation.NewStore()
	wctx := propagation.WithStore(ctx, boundary)
	logger := c.logger.With(zap.Int("worker", id))

	for {
		msg, depth, ok := c.broker.next(ctx)
		if !ok {
			logger.Debug("worker stopping")
			return
		}
		status := c.handle(wctx, boundary, msg, logger)
		if c.metrics != nil {
			c.metrics.RecordConsume(msg.Topic, status, depth)
		}
	}
}

// handle runs one message. A panicking handler is logged and counted as
// a failure; the worker keeps going.
func (c *Consumer) handle(ctx context.Context, boundary *propagation.Store, msg *Message, logger *zap.Logger) (status string) {
	defer boundary.Clear()

	if tc, ok := propagation.ExtractProperties(msg.Properties); ok {
		boundary.SetContext(tc)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("message handler panicked",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Any("panic", r),
			)
			status = tracing.StatusFailure
		}
	}()

	d := tracing.Descriptor{
		Component: QueueComponent,
		Operation: msg.Topic,
		Arguments: fmt.Sprintf("message_id=%s", msg.ID),
	}
	err := c.manager.WithTracing(ctx, d, func(ctx context.Context) error {
		if err := decompress(msg); err != nil {
			return err
		}
		return c.handler(ctx, msg)
	})
	if err != nil {
		logger.Warn("message handler failed",
			append(logging.TraceFields(ctx), zap.String("message_id", msg.ID), zap.Error(err))...,
		)
		return tracing.StatusFailure
	}
	return tracing.StatusSuccess
}
