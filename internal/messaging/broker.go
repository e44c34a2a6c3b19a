package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracectx/internal/propagation"
)

var (
	// ErrQueueFull is returned by Publish when the broker is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("broker is closed")
)

// Message is a queued payload with string-keyed metadata.
type Message struct {
	ID         string
	Topic      string
	Body       []byte
	Properties map[string]any
	Published  time.Time
}

// Broker is an in-process FIFO queue shared by publishers and consumers.
type Broker struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	buf      *queue.Queue
	capacity int
	closed   bool

	compressAbove int

	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Broker.
type Option func(*Broker)

// WithMetrics records queue depth and throughput.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

// WithCompression zstd-compresses published bodies larger than threshold
// bytes. Consumers decompress before handling.
func WithCompression(threshold int) Option {
	return func(b *Broker) {
		b.compressAbove = threshold
	}
}

// WithLogger sets the broker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroker creates a broker holding at most capacity messages.
func NewBroker(capacity int, opts ...Option) *Broker {
	if capacity <= 0 {
		capacity = 1024
	}
	b := &Broker{
		buf:      queue.New(),
		capacity: capacity,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish enqueues body on topic. The trace context stored in ctx, if
// any, travels with the message as trace_id and span_id properties.
func (b *Broker) Publish(ctx context.Context, topic string, body []byte) (*Message, error) {
	msg := &Message{
		ID:         uuid.NewString(),
		Topic:      topic,
		Body:       body,
		Properties: make(map[string]any, 2),
		Published:  b.now(),
	}
	if tc, ok := propagation.FromContext(ctx); ok {
		propagation.InjectProperties(tc, msg.Properties)
	}
	if err := compress(msg, b.compressAbove); err != nil {
		return nil, err
	}
	if err := b.Enqueue(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Enqueue adds a prepared message as is. Properties are not touched.
func (b *Broker) Enqueue(msg *Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.buf.Length() >= b.capacity {
		b.mu.Unlock()
		if b.metrics != nil {
			b.metrics.RecordDrop()
		}
		b.logger.Warn("queue full, rejecting message",
			zap.String("topic", msg.Topic),
			zap.String("message_id", msg.ID),
		)
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, b.capacity)
	}
	b.buf.Add(msg)
	depth := b.buf.Length()
	b.mu.Unlock()

	b.notEmpty.Signal()
	if b.metrics != nil {
		b.metrics.RecordPublish(msg.Topic, depth)
	}
	return nil
}

// Len returns the number of queued messages.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Length()
}

// Close stops accepting messages. Consumers drain what is queued and
// then stop.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.notEmpty.Broadcast()
}

// next blocks until a message is available. It returns false once ctx is
// done, or the broker is closed and empty.
func (b *Broker) next(ctx context.Context) (*Message, int, bool) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.notEmpty.Broadcast()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Length() == 0 {
		if b.closed || ctx.Err() != nil {
			return nil, 0, false
		}
		b.notEmpty.Wait()
	}
	if ctx.Err() != nil {
		return nil, 0, false
	}
	msg := b.buf.Remove().(*Message)
	return msg, b.buf.Length(), true
}
