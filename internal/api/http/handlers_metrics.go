package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/monitoring"
)

// Source reports component statistics for the aggregated metrics view
type Source func() map[string]interface{}

// HandlerMetrics aggregates the Prometheus snapshot with component stats
type HandlerMetrics struct {
	metrics *monitoring.Metrics
	sources map[string]Source
}

// NewHandlerMetrics creates a metrics view
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics, sources: make(map[string]Source)}
}

// AddSource adds a named component to the aggregated view
func (hm *HandlerMetrics) AddSource(name string, source Source) {
	hm.sources[name] = source
}

// Aggregate collects the snapshot and every source
func (hm *HandlerMetrics) Aggregate() gin.H {
	out := gin.H{}
	if hm.metrics != nil {
		out["tracing"] = hm.metrics.Snapshot()
	}
	for name, source := range hm.sources {
		out[name] = source()
	}
	return out
}

// MetricsJSON serves the aggregated metrics
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Aggregate())
}
