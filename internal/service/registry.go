package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/tracectx/internal/messaging"
)

// ErrNoHandler is returned by Dispatch for a topic nobody registered.
var ErrNoHandler = errors.New("no handler registered for topic")

// Registry routes consumed messages to per-topic handlers
type Registry struct {
	handlers   sync.Map
	dispatched atomic.Int64
	unrouted   atomic.Int64
}

// NewRegistry creates a new topic registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler for topic, replacing any previous one
func (r *Registry) Register(topic string, handler messaging.Handler) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for %s cannot be nil", topic)
	}

	r.handlers.Store(topic, handler)
	return nil
}

// Unregister removes the handler for topic
func (r *Registry) Unregister(topic string) {
	r.handlers.Delete(topic)
}

// Get retrieves the handler for topic
func (r *Registry) Get(topic string) (messaging.Handler, bool) {
	val, ok := r.handlers.Load(topic)
	if !ok {
		return nil, false
	}
	return val.(messaging.Handler), true
}

// Topics returns registered topics in sorted order
func (r *Registry) Topics() []string {
	var topics []string
	r.handlers.Range(func(key, _ interface{}) bool {
		topics = append(topics, key.(string))
		return true
	})
	sort.Strings(topics)
	return topics
}

// Dispatch runs the handler registered for the message topic. It has the
// messaging.Handler signature so a Registry can drive a Consumer directly.
func (r *Registry) Dispatch(ctx context.Context, msg *messaging.Message) error {
	handler, ok := r.Get(msg.Topic)
	if !ok {
		r.unrouted.Add(1)
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Topic)
	}
	r.dispatched.Add(1)
	return handler(ctx, msg)
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	return map[string]interface{}{
		"topics":     r.Topics(),
		"dispatched": r.dispatched.Load(),
		"unrouted":   r.unrouted.Load(),
	}
}
