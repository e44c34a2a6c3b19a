package tracing

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrTracerUnavailable = errors.New("tracer unavailable")
	ErrMalformedCarrier  = errors.New("malformed trace carrier")
	ErrLifecycleMisuse   = errors.New("span lifecycle misuse")
)

// attempt runs fn at a tracing boundary. Errors and panics are logged and
// turned into (zero, false) so the traced operation is never affected.
func attempt[T any](logger *zap.Logger, op string, fn func() (T, error)) (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result, ok = zero, false
			logger.Error("Error while "+op, zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	result, err := fn()
	if err != nil {
		var zero T
		logger.Error("Error while "+op, zap.Error(err))
		return zero, false
	}
	return result, true
}

// attemptDo is attempt for boundaries without a result.
func attemptDo(logger *zap.Logger, op string, fn func() error) bool {
	_, ok := attempt(logger, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return ok
}
