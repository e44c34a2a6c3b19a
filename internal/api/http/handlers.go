package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/tracer"
	"github.com/GriffinCanCode/tracectx/internal/logging"
	"github.com/GriffinCanCode/tracectx/internal/messaging"
	"github.com/GriffinCanCode/tracectx/internal/propagation"
	"github.com/GriffinCanCode/tracectx/internal/service"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	orders   *service.Orders
	recorder *tracer.Recorder
	metrics  *HandlerMetrics
	logger   *logging.Logger
	started  time.Time
}

// NewHandlers creates a new handlers instance. recorder may be nil when
// span recording is off.
func NewHandlers(orders *service.Orders, recorder *tracer.Recorder, metrics *HandlerMetrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &Handlers{
		orders:   orders,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
	}
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

// PlaceOrder accepts an order and returns its receipt
func (h *Handlers) PlaceOrder(c *gin.Context) {
	var order service.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order body"})
		return
	}

	receipt, err := h.orders.Place(c.Request.Context(), order)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, receipt)
	case errors.Is(err, service.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order queue is full"})
	default:
		h.logger.WithTrace(c.Request.Context()).Error("Failed to place order",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order could not be placed"})
	}
}

// GetOrder reports whether an order has been fulfilled
func (h *Handlers) GetOrder(c *gin.Context) {
	id := c.Param("id")
	traceID, ok := h.orders.Fulfilled(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"order_id": id, "status": "pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "fulfilled", "trace_id": traceID})
}

// Spans lists recently finished spans, optionally for one trace
func (h *Handlers) Spans(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "span recording is disabled"})
		return
	}

	var spans []tracer.FinishedSpan
	if traceID := c.Query("trace_id"); traceID != "" {
		spans = h.recorder.Trace(traceID)
	} else {
		spans = h.recorder.Spans()
	}

	out := make([]gin.H, 0, len(spans))
	for _, s := range spans {
		out = append(out, gin.H{
			"trace_id":    s.TraceID,
			"span_id":     s.SpanID,
			"parent_id":   s.ParentID,
			"name":        s.Name,
			"service":     s.Service,
			"start":       s.StartTime,
			"duration_ms": float64(s.Duration) / float64(time.Millisecond),
			"tags":        s.Tags,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "spans": out})
}

// traceID returns the current request's trace id, if any
func traceID(c *gin.Context) string {
	if tc, ok := propagation.FromContext(c.Request.Context()); ok {
		return tc.TraceID
	}
	return ""
}
