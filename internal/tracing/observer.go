package tracing

import "time"

// Observer receives lifecycle events for metrics collection.
type Observer interface {
	EngineRegistered()
	TracerUnavailable()
	SpanStarted(parent ParentKind)
	SpanFinished(status string)
	UnitCompleted(component, status string, duration time.Duration)
	ContextCleared()
}

// ParentKind records where a span's parent came from.
type ParentKind string

const (
	ParentActive ParentKind = "active"
	ParentStored ParentKind = "stored"
	ParentRoot   ParentKind = "root"
)

type nopObserver struct{}

func (nopObserver) EngineRegistered()                           {}
func (nopObserver) TracerUnavailable()                          {}
func (nopObserver) SpanStarted(ParentKind)                      {}
func (nopObserver) SpanFinished(string)                         {}
func (nopObserver) UnitCompleted(string, string, time.Duration) {}
func (nopObserver) ContextCleared()                             {}
