package tracing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/resilience"
)

// OperationPrefix is prepended to method span names so they can be told
// apart from transport spans in the backend.
const OperationPrefix = "method:"

// EngineFactory constructs the default engine on first use.
type EngineFactory func() (Engine, error)

// shutdowner is implemented by engines that buffer spans.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Facade owns the process-wide engine slot. Registration happens at most
// once until Shutdown.
type Facade struct {
	factory  EngineFactory
	logger   *zap.Logger
	observer Observer
	breaker  *resilience.Breaker

	engine        atomic.Pointer[engineHolder]
	mu            sync.Mutex
	registrations atomic.Int64
}

type engineHolder struct {
	engine Engine
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithLogger sets the facade logger.
func WithLogger(logger *zap.Logger) FacadeOption {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(observer Observer) FacadeOption {
	return func(f *Facade) {
		if observer != nil {
			f.observer = observer
		}
	}
}

// WithBreaker throttles factory retries after repeated failures.
func WithBreaker(breaker *resilience.Breaker) FacadeOption {
	return func(f *Facade) {
		f.breaker = breaker
	}
}

// NewFacade creates a facade that builds its engine with factory.
func NewFacade(factory EngineFactory, opts ...FacadeOption) *Facade {
	f := &Facade{
		factory:  factory,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EnsureInitialized registers the default engine if none is registered.
// Concurrent callers block until one registration wins. It reports
// whether an engine is available afterwards.
func (f *Facade) EnsureInitialized() bool {
	if f == nil {
		return false
	}
	if f.engine.Load() != nil {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.engine.Load() != nil {
		return true
	}

	engine, ok := attempt(f.logger, "initializing tracer", f.build)
	if !ok {
		f.observer.TracerUnavailable()
		return false
	}

	f.logger.Info("Tracer is absent, registered default engine")
	f.store(engine)
	return true
}

func (f *Facade) build() (Engine, error) {
	if f.factory == nil {
		return nil, fmt.Errorf("%w: no engine factory configured", ErrTracerUnavailable)
	}

	var engine Engine
	construct := func() error {
		e, err := f.factory()
		if err != nil {
			return err
		}
		if e == nil {
			return errors.New("engine factory returned nil")
		}
		engine = e
		return nil
	}

	var err error
	if f.breaker != nil {
		err = f.breaker.Execute(construct)
	} else {
		err = construct()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTracerUnavailable, err)
	}
	return engine, nil
}

// Register installs engine if none is registered yet and reports whether
// it was installed.
func (f *Facade) Register(engine Engine) bool {
	if f == nil || engine == nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.engine.Load() != nil {
		return false
	}
	f.store(engine)
	return true
}

func (f *Facade) store(engine Engine) {
	f.engine.Store(&engineHolder{engine: engine})
	f.registrations.Add(1)
	f.observer.EngineRegistered()
}

// Tracer returns the registered engine, initializing it on first use.
func (f *Facade) Tracer() (Engine, bool) {
	if !f.EnsureInitialized() {
		return nil, false
	}
	h := f.engine.Load()
	if h == nil {
		return nil, false
	}
	return h.engine, true
}

// BuildSpan returns a builder for a method span named after operation.
func (f *Facade) BuildSpan(operation string) (SpanBuilder, bool) {
	return f.buildSpan(OperationPrefix + operation)
}

// BuildTransportSpan returns a builder for a transport span. The name is
// used as is.
func (f *Facade) BuildTransportSpan(name string) (SpanBuilder, bool) {
	return f.buildSpan(name)
}

func (f *Facade) buildSpan(name string) (SpanBuilder, bool) {
	engine, ok := f.Tracer()
	if !ok {
		return nil, false
	}
	return attempt(f.logger, "building span", func() (SpanBuilder, error) {
		b := engine.BuildSpan(name)
		if b == nil {
			return nil, fmt.Errorf("%w: engine returned nil builder", ErrTracerUnavailable)
		}
		return b, nil
	})
}

// Registrations reports how many engines have been registered.
func (f *Facade) Registrations() int {
	return int(f.registrations.Load())
}

// Shutdown flushes the registered engine and empties the slot so the
// facade can be initialized again.
func (f *Facade) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	h := f.engine.Swap(nil)
	f.mu.Unlock()

	if h == nil {
		return nil
	}
	if s, ok := h.engine.(shutdowner); ok {
		if err := s.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down tracer: %w", err)
		}
	}
	return nil
}
