// Package telemetry wires tracing and metrics for the routing layer: an
// OpenTelemetry tracer provider bootstrap for daemons, global-meter
// instruments for dispatch decisions and bounded calls, and Prometheus
// collectors for the bridge.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce        sync.Once
	metricsInitErr     error
	dispatchCounter    metric.Int64Counter
	constructCounter   metric.Int64Counter
	timeoutCounter     metric.Int64Counter
	boundedLatencyHist metric.Float64Histogram
)

// DispatchMetrics captures one routing decision at construction time.
type DispatchMetrics struct {
	Surface  string
	Class    string
	Backend  string
	Fallback bool
	Err      error
}

// RecordDispatch emits counters describing which backend served a
// construction call and whether it had to fall back.
func RecordDispatch(ctx context.Context, m DispatchMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	outcome := "ok"
	if m.Err != nil {
		outcome = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("surface", m.Surface),
		attribute.String("route.class", m.Class),
		attribute.String("backend.kind", m.Backend),
		attribute.Bool("backend.fallback", m.Fallback),
		attribute.String("outcome", outcome),
	}
	dispatchCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	constructCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBoundedCall emits latency and timeout telemetry for one bounded
// remote call.
func RecordBoundedCall(ctx context.Context, op string, duration time.Duration, timedOut bool) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.Bool("timeout", timedOut),
	}
	boundedLatencyHist.Record(ctx, float64(duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	if timedOut {
		timeoutCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("devlink.routing")

		dispatchCounter, metricsInitErr = meter.Int64Counter(
			"devlink.dispatch_total",
			metric.WithDescription("Construction calls partitioned by surface, class, and chosen backend"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		constructCounter, metricsInitErr = meter.Int64Counter(
			"devlink.backend.constructions_total",
			metric.WithDescription("Backend handle constructions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		timeoutCounter, metricsInitErr = meter.Int64Counter(
			"devlink.bounded.timeouts_total",
			metric.WithDescription("Bounded remote calls that hit their deadline"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		boundedLatencyHist, metricsInitErr = meter.Float64Histogram(
			"devlink.bounded.duration_ms",
			metric.WithDescription("Bounded remote call latency in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
	return metricsInitErr
}
