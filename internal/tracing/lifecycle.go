package tracing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/propagation"
)

// Span tag keys.
const (
	TagClassName  = "class.name"
	TagMethodName = "method.name"
	TagParameters = "method.parameters"
	TagStatus     = "method.status"
)

// Status tag values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Descriptor describes the unit of work being traced.
type Descriptor struct {
	Component string
	Operation string
	Arguments string
	// Transport marks an inbound request unit (HTTP, gRPC). Its span is
	// named by Operation alone, without OperationPrefix.
	Transport bool
}

func (d Descriptor) builder(f *Facade) (SpanBuilder, bool) {
	if d.Transport {
		return f.BuildTransportSpan(d.Operation)
	}
	return f.BuildSpan(d.Operation)
}

// Manager starts and finalizes spans for units of work.
type Manager struct {
	facade   *Facade
	logger   *zap.Logger
	observer Observer
}

// NewManager creates a manager backed by facade.
func NewManager(facade *Facade, logger *zap.Logger, observer Observer) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Manager{
		facade:   facade,
		logger:   logger,
		observer: observer,
	}
}

// Start begins a span for d. The returned context carries the activated
// span and a fresh Store holding its ids. When tracing is unavailable the
// span and scope are nil and the Store keeps the inherited trace context,
// so propagation continues untraced.
func (m *Manager) Start(ctx context.Context, d Descriptor) (context.Context, Span, Scope) {
	if ctx == nil {
		ctx = context.Background()
	}
	unitStore := propagation.NewStore()
	if inherited, ok := propagation.FromContext(ctx); ok {
		unitStore.SetContext(inherited)
	}
	fallback := propagation.WithStore(ctx, unitStore)

	engine, ok := m.facade.Tracer()
	if !ok {
		return fallback, nil, nil
	}

	parent, kind := m.parentOf(ctx, engine)

	span, ok := attempt(m.logger, "starting span", func() (Span, error) {
		builder, ok := d.builder(m.facade)
		if !ok {
			return nil, ErrTracerUnavailable
		}
		if parent != nil {
			builder = builder.AsChildOf(parent)
		}
		builder = builder.
			WithTag(TagClassName, d.Component).
			WithTag(TagMethodName, d.Operation)

		span := builder.Start()
		if span == nil {
			return nil, fmt.Errorf("%w: engine returned nil span", ErrTracerUnavailable)
		}
		if strings.TrimSpace(d.Arguments) != "" {
			span.SetTag(TagParameters, d.Arguments)
		}
		return span, nil
	})
	if !ok {
		return fallback, nil, nil
	}

	type activated struct {
		ctx   context.Context
		scope Scope
	}
	act, ok := attempt(m.logger, "starting scope", func() (activated, error) {
		actx, scope := engine.ActivateSpan(ctx, span)
		if actx == nil || scope == nil {
			return activated{}, fmt.Errorf("%w: activation returned nil", ErrLifecycleMisuse)
		}
		return activated{ctx: actx, scope: scope}, nil
	})
	if !ok {
		// The span was started; finish it so the engine does not leak it.
		m.Finish(span, nil)
		return fallback, nil, nil
	}

	if sc := span.Context(); sc != nil {
		unitStore.Set(sc.TraceID(), sc.SpanID())
	}
	m.observer.SpanStarted(kind)

	return propagation.WithStore(act.ctx, unitStore), span, act.scope
}

// parentOf picks the parent for a new span: the span already active in
// ctx, else the context held by the Store in ctx, else none.
func (m *Manager) parentOf(ctx context.Context, engine Engine) (SpanContext, ParentKind) {
	active, _ := attempt(m.logger, "reading active span", func() (SpanContext, error) {
		if span := engine.ActiveSpan(ctx); span != nil {
			return span.Context(), nil
		}
		return nil, nil
	})
	if active != nil {
		return active, ParentActive
	}

	stored, ok := propagation.FromContext(ctx)
	if !ok {
		return nil, ParentRoot
	}

	// The stored span becomes the parent of the extracted lineage.
	headers := propagation.Inject(propagation.NewTraceContext(stored.TraceID, stored.SpanID, stored.SpanID), nil)
	extracted, ok := attempt(m.logger, "extracting stored context", func() (SpanContext, error) {
		sc, err := engine.Extract(headers)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCarrier, err)
		}
		return sc, nil
	})
	if !ok || extracted == nil {
		return nil, ParentRoot
	}
	return extracted, ParentStored
}

// MarkOutcome tags span with SUCCESS or FAILURE. A nil span is ignored.
func (m *Manager) MarkOutcome(span Span, success bool) {
	if span == nil {
		return
	}
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	attemptDo(m.logger, "adding "+strings.ToLower(status)+" tag to span", func() error {
		span.SetTag(TagStatus, status)
		return nil
	})
}

// Finish closes scope, then finishes span. Each step runs even if the
// other fails. Nil arguments are skipped.
func (m *Manager) Finish(span Span, scope Scope) {
	if scope != nil {
		attemptDo(m.logger, "closing scope", func() error {
			scope.Close()
			return nil
		})
	}
	if span != nil {
		attemptDo(m.logger, "finishing span", func() error {
			span.Finish()
			return nil
		})
	}
}

// Teardown clears the Store in ctx. Safe to call more than once.
func (m *Manager) Teardown(ctx context.Context) {
	if ctx == nil {
		return
	}
	if s := propagation.StoreFrom(ctx); s != nil {
		s.Clear()
		m.observer.ContextCleared()
	}
}

// State is the lifecycle position of a Unit.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Unit is one traced unit of work. It is started once and ended once.
type Unit struct {
	manager    *Manager
	descriptor Descriptor
	started    time.Time

	mu    sync.Mutex
	state State
	ctx   context.Context
	span  Span
	scope Scope
}

// Begin starts a unit of work for d.
func (m *Manager) Begin(ctx context.Context, d Descriptor) *Unit {
	u := &Unit{manager: m, descriptor: d, state: StateNotStarted, ctx: ctx}
	u.ctx, u.span, u.scope = m.Start(ctx, d)
	u.started = time.Now()
	u.state = StateActive
	return u
}

// Context returns the context the unit's operation should run with.
func (u *Unit) Context() context.Context {
	return u.ctx
}

// Span returns the unit's span, nil when tracing was unavailable.
func (u *Unit) Span() Span {
	return u.span
}

// State returns the unit's lifecycle state.
func (u *Unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// End marks the outcome, finishes the span and tears down the Store.
// Only the first call has any effect.
func (u *Unit) End(err error) {
	u.mu.Lock()
	if u.state != StateActive {
		u.mu.Unlock()
		u.manager.logger.Debug("unit already finalized",
			zap.String("component", u.descriptor.Component),
			zap.String("operation", u.descriptor.Operation),
			zap.Error(ErrLifecycleMisuse),
		)
		return
	}
	u.state = StateFinalized
	u.mu.Unlock()

	success := err == nil
	if success && u.ctx != nil && u.ctx.Err() != nil {
		success = false
	}

	status := StatusFailure
	if success {
		status = StatusSuccess
	}

	u.manager.MarkOutcome(u.span, success)
	u.manager.Finish(u.span, u.scope)
	u.manager.Teardown(u.ctx)

	if u.span != nil {
		u.manager.observer.SpanFinished(status)
	}
	u.manager.observer.UnitCompleted(u.descriptor.Component, status, time.Since(u.started))
}
