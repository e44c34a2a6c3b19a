package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/tracectx/internal/propagation"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

// HTTPComponent is the class.name tag of request spans.
const HTTPComponent = "http"

// TracingOption configures the Tracing middleware.
type TracingOption func(*tracingConfig)

type tracingConfig struct {
	skip []string
}

// SkipPaths serves requests whose path matches any doublestar glob
// (e.g. "/debug/**") without a span.
func SkipPaths(patterns ...string) TracingOption {
	return func(cfg *tracingConfig) {
		for _, p := range patterns {
			if doublestar.ValidatePattern(p) {
				cfg.skip = append(cfg.skip, p)
			}
		}
	}
}

func (cfg *tracingConfig) skipped(path string) bool {
	for _, p := range cfg.skip {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Tracing creates a Gin middleware that continues the caller's B3 trace.
// Each request gets its own boundary store, filled from the request
// headers and cleared when the request ends, so a recycled gin.Context
// never sees the previous request's ids.
func Tracing(manager *tracing.Manager, opts ...TracingOption) gin.HandlerFunc {
	cfg := &tracingConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		if cfg.skipped(c.Request.URL.Path) {
			c.Next()
			return
		}

		boundary := propagation.NewStore()
		defer boundary.Clear()

		if tc, ok := propagation.ExtractFrom(propagation.HTTPCarrier(c.Request.Header)); ok {
			boundary.SetContext(tc)
		}
		ctx := propagation.WithStore(c.Request.Context(), boundary)

		d := tracing.Descriptor{
			Component: HTTPComponent,
			Operation: c.Request.Method + " " + routeOf(c),
			Transport: true,
		}

		_ = manager.WithTracing(ctx, d, func(ctx context.Context) error {
			c.Request = c.Request.WithContext(ctx)

			// Echo the request span so callers can correlate
			if tc, ok := propagation.FromContext(ctx); ok {
				propagation.InjectInto(tc, propagation.HTTPCarrier(c.Writer.Header()))
			}

			c.Next()

			status := c.Writer.Status()
			if span := tracing.ActiveFrom(ctx); span != nil {
				span.SetTag("http.status_code", strconv.Itoa(status))
			}
			return outcome(c, status)
		})
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// outcome maps the response to the error recorded on the span. Client
// errors are the caller's fault and count as success.
func outcome(c *gin.Context, status int) error {
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("http status %d", status)
	}
	if err := c.Errors.Last(); err != nil && err.IsType(gin.ErrorTypePrivate) {
		return err
	}
	return nil
}

// Transport propagates the trace context of each request's context to
// the outgoing request headers.
type Transport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	tc, ok := propagation.FromContext(req.Context())
	if !ok {
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	propagation.InjectInto(tc, propagation.HTTPCarrier(out.Header))
	return base.RoundTrip(out)
}
