package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/logging"
)

// ClientLogEntry is a log line reported by a browser or mobile client
type ClientLogEntry struct {
	ID        string                 `json:"id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// ClientLogRequest is a batch of client log entries
type ClientLogRequest struct {
	Source  string           `json:"source"`
	Entries []ClientLogEntry `json:"entries"`
}

// StreamLogs writes client log entries into the service log. Each line
// carries the trace of the request that delivered it, so client logs show
// up next to the server spans of the same trace.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req ClientLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log request format"})
		return
	}
	if req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing log source"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No log entries provided"})
		return
	}

	logger := h.logger.WithTrace(c.Request.Context()).Named("client")
	for _, entry := range req.Entries {
		writeClientEntry(logger, req.Source, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"entries_received": len(req.Entries),
		"trace_id":         traceID(c),
		"timestamp":        time.Now().Unix(),
	})
}

func writeClientEntry(logger *logging.Logger, source string, entry ClientLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+3)
	fields = append(fields,
		zap.String("client_log_id", entry.ID),
		zap.String("source", source),
		zap.String("client_timestamp", entry.Timestamp),
	)

	for key, value := range entry.Context {
		// Correlation fields come from the delivering request only
		if key == logging.FieldTraceID || key == logging.FieldSpanID {
			key = "client_" + key
		}
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
