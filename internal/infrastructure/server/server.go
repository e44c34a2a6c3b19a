package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apihttp "github.com/GriffinCanCode/tracectx/internal/api/http"
	"github.com/GriffinCanCode/tracectx/internal/api/middleware"
	tracegrpc "github.com/GriffinCanCode/tracectx/internal/grpc"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/otelbridge"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/tracer"
	"github.com/GriffinCanCode/tracectx/internal/logging"
	"github.com/GriffinCanCode/tracectx/internal/messaging"
	"github.com/GriffinCanCode/tracectx/internal/service"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
	"github.com/GriffinCanCode/tracectx/internal/ws"
)

// Server wraps the HTTP and gRPC servers and their dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics

	facade   *tracing.Facade
	manager  *tracing.Manager
	exporter *tracer.LogExporter
	recorder *tracer.Recorder
	spans    *tracer.Broadcaster

	broker   *messaging.Broker
	consumer *messaging.Consumer
	topics   *service.Registry
	orders   *service.Orders

	router     *gin.Engine
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server

	mu           sync.Mutex
	httpLis      net.Listener
	grpcLis      net.Listener
	stopConsumer context.CancelFunc
	consumerDone chan struct{}
	errs         chan error
}

// Option configures a Server
type Option func(*options)

type options struct {
	logger   *logging.Logger
	registry *prometheus.Registry
}

// WithLogger uses logger instead of building one from the config
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry registers metrics with reg instead of a fresh registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Initialize logger
	logger := o.logger
	if logger == nil {
		l, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
	}

	logger.Info("Initializing tracectx server",
		zap.String("port", cfg.Server.Port),
		zap.String("engine", cfg.Tracing.Engine),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)

	// Initialize metrics first (needed by other components)
	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := monitoring.NewMetrics(reg)

	s := &Server{
		config:   cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics,
		recorder: tracer.NewRecorder(cfg.Tracing.SpanBuffer),
		spans:    tracer.NewBroadcaster(),
		exporter: tracer.NewLogExporter(logger.Named("spans").Logger, cfg.Tracing.SpanBuffer),
		errs:     make(chan error, 2),
	}

	// Tracing; a disabled tracer leaves the manager without a facade so
	// every unit runs untraced
	if cfg.Tracing.Enabled {
		s.facade = tracing.NewFacade(s.engineFactory(),
			tracing.WithLogger(logger.Logger),
			tracing.WithObserver(metrics),
			tracing.WithBreaker(resilience.New("tracer", resilience.EngineSettings())),
		)
	}
	s.manager = tracing.NewManager(s.facade, logger.Logger, metrics)
	logger.Info("Distributed tracing initialized")

	// Queue and order service
	s.broker = messaging.NewBroker(cfg.Queue.Capacity,
		messaging.WithMetrics(metrics),
		messaging.WithLogger(logger.Logger),
		messaging.WithCompression(cfg.Queue.CompressAbove),
	)
	var payments service.Payments
	if cfg.Payments.URL != "" {
		payments = service.NewPaymentClient(cfg.Payments.URL, logger.Logger,
			service.WithPaymentRetries(cfg.Payments.Retries, 50*time.Millisecond, 500*time.Millisecond))
		logger.Info("Payment gateway configured", zap.String("url", cfg.Payments.URL))
	}
	s.orders = service.NewOrders(s.manager, s.broker, payments, logger)
	s.topics = service.NewRegistry()
	if err := s.orders.Register(s.topics); err != nil {
		return nil, fmt.Errorf("failed to register order topics: %w", err)
	}
	s.consumer = messaging.NewConsumer(s.broker, s.manager, s.topics.Dispatch,
		messaging.WithWorkers(cfg.Queue.Workers),
		messaging.WithConsumerMetrics(metrics),
		messaging.WithConsumerLogger(logger.Logger),
	)

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.GRPC.Enabled {
		s.grpcServer, s.health = tracegrpc.NewServer(s.manager, metrics)
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) engineFactory() tracing.EngineFactory {
	cfg := s.config.Tracing
	exporters := []tracer.Exporter{s.exporter, s.recorder, s.spans}

	if cfg.Engine == config.EngineOTel {
		return func() (tracing.Engine, error) {
			forward := otelbridge.NewForwarder(cfg.ServiceName, exporters...)
			return otelbridge.New(cfg.ServiceName, s.logger.Logger, otelbridge.WithSyncer(forward)), nil
		}
	}
	return func() (tracing.Engine, error) {
		opts := make([]tracer.Option, 0, len(exporters))
		for _, e := range exporters {
			opts = append(opts, tracer.WithExporter(e))
		}
		return tracer.New(cfg.ServiceName, s.logger.Logger, opts...), nil
	}
}

func (s *Server) buildRouter() *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing(s.manager, middleware.SkipPaths(cfg.Tracing.SkipPaths...)))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlerMetrics := apihttp.NewHandlerMetrics(s.metrics)
	handlerMetrics.AddSource("queue", func() map[string]interface{} {
		return map[string]interface{}{"depth": s.broker.Len()}
	})
	handlerMetrics.AddSource("topics", s.topics.Stats)
	handlerMetrics.AddSource("stream", func() map[string]interface{} {
		return map[string]interface{}{
			"subscribers": s.spans.Subscribers(),
			"dropped":     s.spans.Dropped(),
		}
	})
	handlers := apihttp.NewHandlers(s.orders, s.recorder, handlerMetrics, s.logger)
	stream := ws.NewHandler(s.spans, s.logger.Logger)

	// Register routes
	router.GET("/health", handlers.Health)
	router.POST("/orders", handlers.PlaceOrder)
	router.GET("/orders/:id", handlers.GetOrder)
	router.POST("/logs", handlers.StreamLogs)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})))
	router.GET("/metrics/json", handlers.MetricsJSON)

	// Debugging
	router.GET("/debug/spans", handlers.Spans)
	router.GET("/debug/spans/stream", stream.HandleConnection)

	return router
}

// Router exposes the HTTP handler, for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Manager returns the span lifecycle manager shared by all triggers
func (s *Server) Manager() *tracing.Manager {
	return s.manager
}

// Start binds the listeners and launches the queue consumer, the gRPC
// server and the HTTP server. It returns once everything is listening.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpLis != nil {
		return errors.New("server already started")
	}

	httpLis, err := net.Listen("tcp", net.JoinHostPort(s.config.Server.Host, s.config.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen for HTTP: %w", err)
	}
	if s.grpcServer != nil {
		grpcLis, err := net.Listen("tcp", net.JoinHostPort(s.config.Server.Host, s.config.GRPC.Port))
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		s.grpcLis = grpcLis
	}
	s.httpLis = httpLis

	ctx, cancel := context.WithCancel(context.Background())
	s.stopConsumer = cancel
	s.consumerDone = make(chan struct{})
	go func() {
		defer close(s.consumerDone)
		s.consumer.Run(ctx)
	}()

	if s.grpcServer != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.logger.Info("Starting gRPC server", zap.String("addr", s.grpcLis.Addr().String()))
		go func() {
			if err := s.grpcServer.Serve(s.grpcLis); err != nil {
				s.errs <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", httpLis.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return nil
}

// HTTPAddr returns the bound HTTP address, empty before Start
func (s *Server) HTTPAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLis == nil {
		return ""
	}
	return s.httpLis.Addr().String()
}

// GRPCAddr returns the bound gRPC address, empty before Start or when
// gRPC is disabled
func (s *Server) GRPCAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grpcLis == nil {
		return ""
	}
	return s.grpcLis.Addr().String()
}

// Run starts the server and blocks until ctx is done or a listener
// fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-s.errs:
		s.logger.Error("Server stopped unexpectedly", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, s.Shutdown(shutdownCtx))
}

// Shutdown stops accepting work, drains queued messages, and flushes the
// tracer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	var errs []error

	if s.health != nil {
		s.health.Shutdown()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
	}
	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}

	// Consumers drain what is queued, then stop
	s.broker.Close()
	s.mu.Lock()
	done, stop := s.consumerDone, s.stopConsumer
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			stop()
			<-done
			errs = append(errs, fmt.Errorf("queue not drained: %w", ctx.Err()))
		}
		stop()
	}

	if s.facade != nil {
		if err := s.facade.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.exporter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush span log: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
