package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrName      = attribute.Key("perf.name")
	AttrElapsedMs = attribute.Key("perf.elapsed_ms")
	AttrAbandoned = attribute.Key("perf.abandoned")
)

// SpanObserver opens a span when a measurement starts and ends it, with the
// registry's own timestamps, when the measurement ends.
type SpanObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewSpanObserver creates an observer using tracer
func NewSpanObserver(tracer trace.Tracer) *SpanObserver {
	return &SpanObserver{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

// MeasurementStarted implements perf.Observer. A span left open by a
// measurement that was reinitialized mid-flight is ended as abandoned.
func (o *SpanObserver) MeasurementStarted(name string, at time.Time) {
	_, span := o.tracer.Start(context.Background(), name,
		trace.WithTimestamp(at),
		trace.WithAttributes(AttrName.String(name)),
	)

	o.mu.Lock()
	old, ok := o.spans[name]
	o.spans[name] = span
	o.mu.Unlock()

	if ok {
		old.SetAttributes(AttrAbandoned.Bool(true))
		old.End(trace.WithTimestamp(at))
	}
}

// MeasurementEnded implements perf.Observer
func (o *SpanObserver) MeasurementEnded(name string, startedAt, endedAt time.Time) {
	o.mu.Lock()
	span, ok := o.spans[name]
	delete(o.spans, name)
	o.mu.Unlock()

	if !ok {
		return
	}
	elapsed := endedAt.Sub(startedAt)
	span.SetAttributes(AttrElapsedMs.Float64(float64(elapsed) / float64(time.Millisecond)))
	span.End(trace.WithTimestamp(endedAt))
}

// Open returns how many spans are waiting for their measurement to end.
func (o *SpanObserver) Open() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.spans)
}
