package tracing

import (
	"context"
	"fmt"
)

// WithTracing runs op inside a traced unit of work. The unit is ended on
// return, on error and on panic; op's error and panics reach the caller
// unchanged.
func (m *Manager) WithTracing(ctx context.Context, d Descriptor, op func(ctx context.Context) error) error {
	_, err := Trace(m, ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Trace is WithTracing for operations that return a value.
func Trace[T any](m *Manager, ctx context.Context, d Descriptor, op func(ctx context.Context) (T, error)) (result T, err error) {
	unit := m.Begin(ctx, d)

	defer func() {
		if r := recover(); r != nil {
			unit.End(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		unit.End(err)
	}()

	return op(unit.Context())
}
