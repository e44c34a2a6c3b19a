package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/tracer"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // debug endpoint, any origin
	},
}

// Event is one frame sent to the client
type Event struct {
	Type      string     `json:"type"`
	Message   string     `json:"message,omitempty"`
	Span      *SpanEvent `json:"span,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// SpanEvent is the wire form of a finished span
type SpanEvent struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Name       string            `json:"name"`
	Service    string            `json:"service"`
	Start      time.Time         `json:"start"`
	DurationMS float64           `json:"duration_ms"`
	Tags       map[string]string `json:"tags,omitempty"`
}

func newSpanEvent(s tracer.FinishedSpan) *SpanEvent {
	return &SpanEvent{
		TraceID:    s.TraceID,
		SpanID:     s.SpanID,
		ParentID:   s.ParentID,
		Name:       s.Name,
		Service:    s.Service,
		Start:      s.StartTime,
		DurationMS: float64(s.Duration) / float64(time.Millisecond),
		Tags:       s.Tags,
	}
}

// Handler streams finished spans to WebSocket clients
type Handler struct {
	spans  *tracer.Broadcaster
	logger *zap.Logger
	buffer int
}

// NewHandler creates a new span stream handler
func NewHandler(spans *tracer.Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{spans: spans, logger: logger, buffer: 256}
}

// HandleConnection upgrades the request and streams spans until the
// client goes away. The optional trace_id query parameter restricts the
// stream to one trace.
func (h *Handler) HandleConnection(c *gin.Context) {
	traceFilter := c.Query("trace_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	spans, cancel := h.spans.Subscribe(h.buffer)
	defer cancel()

	if err := h.send(conn, Event{Type: "system", Message: "subscribed"}); err != nil {
		return
	}

	// Reader only watches for close and pongs; all writes stay on this goroutine
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case span, ok := <-spans:
			if !ok {
				return
			}
			if traceFilter != "" && span.TraceID != traceFilter {
				continue
			}
			if err := h.send(conn, Event{Type: "span", Span: newSpanEvent(span)}); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, ev Event) error {
	ev.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
