package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/logging"
	"github.com/GriffinCanCode/tracectx/internal/messaging"
	"github.com/GriffinCanCode/tracectx/internal/propagation"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

const (
	// OrdersComponent is the class.name tag of order spans
	OrdersComponent = "OrderService"
	// TopicOrderPlaced carries accepted orders to fulfilment
	TopicOrderPlaced = "orders.placed"
)

// ErrInvalidOrder is returned by Place for orders that cannot be accepted.
var ErrInvalidOrder = errors.New("invalid order")

// Order is an incoming purchase
type Order struct {
	ID          string   `json:"id"`
	Customer    string   `json:"customer"`
	AmountCents int64    `json:"amount_cents"`
	Items       []string `json:"items,omitempty"`
}

// Receipt confirms an accepted order
type Receipt struct {
	OrderID   string `json:"order_id"`
	MessageID string `json:"message_id"`
	TraceID   string `json:"trace_id"`
}

// Orders accepts orders synchronously and fulfils them from the queue.
// Each step is its own traced unit, so one order produces one trace:
// place, charge, and later fulfil on a consumer worker.
type Orders struct {
	manager  *tracing.Manager
	broker   *messaging.Broker
	payments Payments
	logger   *logging.Logger

	mu        sync.RWMutex
	fulfilled map[string]string
}

// NewOrders creates the order service. payments may be nil, in which case
// orders are accepted without charging.
func NewOrders(manager *tracing.Manager, broker *messaging.Broker, payments Payments, logger *logging.Logger) *Orders {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &Orders{
		manager:   manager,
		broker:    broker,
		payments:  payments,
		logger:    logger.Named("orders"),
		fulfilled: make(map[string]string),
	}
}

// Register routes order topics through r
func (s *Orders) Register(r *Registry) error {
	return r.Register(TopicOrderPlaced, s.HandlePlaced)
}

// Place validates, charges and enqueues an order for fulfilment
func (s *Orders) Place(ctx context.Context, order Order) (Receipt, error) {
	d := tracing.Descriptor{
		Component: OrdersComponent,
		Operation: "place",
		Arguments: fmt.Sprintf("order_id=%s, amount_cents=%d", order.ID, order.AmountCents),
	}
	return tracing.Trace(s.manager, ctx, d, func(ctx context.Context) (Receipt, error) {
		if err := validate(order); err != nil {
			return Receipt{}, err
		}
		if err := s.charge(ctx, order); err != nil {
			return Receipt{}, err
		}

		body, err := sonic.Marshal(order)
		if err != nil {
			return Receipt{}, fmt.Errorf("encode order %s: %w", order.ID, err)
		}
		msg, err := s.broker.Publish(ctx, TopicOrderPlaced, body)
		if err != nil {
			return Receipt{}, fmt.Errorf("enqueue order %s: %w", order.ID, err)
		}

		receipt := Receipt{OrderID: order.ID, MessageID: msg.ID}
		if tc, ok := propagation.FromContext(ctx); ok {
			receipt.TraceID = tc.TraceID
		}
		s.logger.WithTrace(ctx).Info("order placed",
			zap.String("order_id", order.ID),
			zap.String("message_id", msg.ID),
		)
		return receipt, nil
	})
}

func (s *Orders) charge(ctx context.Context, order Order) error {
	d := tracing.Descriptor{
		Component: OrdersComponent,
		Operation: "charge",
		Arguments: fmt.Sprintf("order_id=%s", order.ID),
	}
	return s.manager.WithTracing(ctx, d, func(ctx context.Context) error {
		if s.payments == nil {
			return nil
		}
		return s.payments.Charge(ctx, order.ID, order.AmountCents)
	})
}

// HandlePlaced fulfils an order taken off the queue
func (s *Orders) HandlePlaced(ctx context.Context, msg *messaging.Message) error {
	var order Order
	if err := sonic.Unmarshal(msg.Body, &order); err != nil {
		return fmt.Errorf("decode order message %s: %w", msg.ID, err)
	}

	d := tracing.Descriptor{
		Component: OrdersComponent,
		Operation: "fulfil",
		Arguments: fmt.Sprintf("order_id=%s", order.ID),
	}
	return s.manager.WithTracing(ctx, d, func(ctx context.Context) error {
		traceID := ""
		if tc, ok := propagation.FromContext(ctx); ok {
			traceID = tc.TraceID
		}

		s.mu.Lock()
		s.fulfilled[order.ID] = traceID
		s.mu.Unlock()

		s.logger.WithTrace(ctx).Info("order fulfilled", zap.String("order_id", order.ID))
		return nil
	})
}

// Fulfilled reports whether the order was fulfilled and under which trace
func (s *Orders) Fulfilled(orderID string) (traceID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	traceID, ok = s.fulfilled[orderID]
	return traceID, ok
}

func validate(order Order) error {
	switch {
	case strings.TrimSpace(order.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidOrder)
	case strings.TrimSpace(order.Customer) == "":
		return fmt.Errorf("%w: missing customer", ErrInvalidOrder)
	case order.AmountCents <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	return nil
}
