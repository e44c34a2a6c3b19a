package tracing_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/tracer"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

func TestEnsureInitializedConcurrent(t *testing.T) {
	var built atomic.Int64
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		built.Add(1)
		time.Sleep(time.Millisecond)
		return tracer.New("test", nil), nil
	})

	const callers = 1000
	var wg sync.WaitGroup
	var unavailable atomic.Int64

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !facade.EnsureInitialized() {
				unavailable.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), built.Load())
	assert.Equal(t, 1, facade.Registrations())
	assert.Zero(t, unavailable.Load())

	engine, ok := facade.Tracer()
	require.True(t, ok)
	assert.NotNil(t, engine)
}

func TestEnsureInitializedIdempotent(t *testing.T) {
	calls := 0
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		calls++
		return tracer.New("test", nil), nil
	})

	for i := 0; i < 10; i++ {
		assert.True(t, facade.EnsureInitialized())
	}
	assert.Equal(t, 1, calls)
}

func TestFactoryFailureIsUnavailable(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	attempts := 0
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("collector unreachable")
		}
		return tracer.New("test", nil), nil
	}, tracing.WithLogger(zap.New(core)))

	assert.False(t, facade.EnsureInitialized())
	engine, ok := facade.Tracer()
	assert.True(t, ok, "a later call retries construction")
	assert.NotNil(t, engine)
	assert.Equal(t, 1, logs.FilterMessage("Error while initializing tracer").Len())
}

func TestFactoryPanicIsUnavailable(t *testing.T) {
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		panic("no engine")
	})

	assert.NotPanics(t, func() {
		assert.False(t, facade.EnsureInitialized())
	})
	_, ok := facade.BuildSpan("x")
	assert.False(t, ok)
}

func TestNilFactoryAndNilEngine(t *testing.T) {
	assert.False(t, tracing.NewFacade(nil).EnsureInitialized())

	facade := tracing.NewFacade(func() (tracing.Engine, error) { return nil, nil })
	assert.False(t, facade.EnsureInitialized())

	var nilFacade *tracing.Facade
	assert.False(t, nilFacade.EnsureInitialized())
}

func TestBreakerThrottlesFactory(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	settings := resilience.EngineSettings()
	settings.Now = func() time.Time { return now }

	calls := 0
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		calls++
		return nil, errors.New("down")
	}, tracing.WithBreaker(resilience.New("tracer", settings)))

	for i := 0; i < 10; i++ {
		assert.False(t, facade.EnsureInitialized())
	}
	assert.Equal(t, 3, calls, "breaker opens after three failures")

	now = now.Add(settings.Timeout + time.Second)
	assert.False(t, facade.EnsureInitialized())
	assert.Equal(t, 4, calls, "one trial once the breaker half-opens")
}

func TestRegisterIfAbsent(t *testing.T) {
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		return tracer.New("default", nil), nil
	})

	custom := tracer.New("custom", nil)
	assert.True(t, facade.Register(custom))
	assert.False(t, facade.Register(tracer.New("other", nil)))
	assert.False(t, facade.Register(nil))

	engine, ok := facade.Tracer()
	require.True(t, ok)
	assert.Same(t, custom, engine)
	assert.Equal(t, 1, facade.Registrations())
}

func TestBuildSpanPrefixesOperation(t *testing.T) {
	rec := tracer.NewRecorder(0)
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		return tracer.New("test", nil, tracer.WithExporter(rec)), nil
	})

	builder, ok := facade.BuildSpan("charge")
	require.True(t, ok)
	builder.Start().Finish()

	assert.Equal(t, "method:charge", rec.Spans()[0].Name)
}

func TestShutdownAllowsReinitialize(t *testing.T) {
	calls := 0
	facade := tracing.NewFacade(func() (tracing.Engine, error) {
		calls++
		return tracer.New("test", nil, tracer.WithExporter(tracer.NewLogExporter(nil, 10))), nil
	})

	require.NoError(t, facade.Shutdown(context.Background()), "shutdown before init is a no-op")

	require.True(t, facade.EnsureInitialized())
	require.NoError(t, facade.Shutdown(context.Background()))
	require.True(t, facade.EnsureInitialized())

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, facade.Registrations())
}
