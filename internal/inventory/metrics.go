package inventory

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("stockservice/inventory")

var (
	eventsTotal    metric.Int64Counter
	mutationsTotal metric.Int64Counter
	eventDuration  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		eventsTotal, err = meter.Int64Counter(
			"stock_events_total",
			metric.WithDescription("Inbound stock events by kind and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mutationsTotal, err = meter.Int64Counter(
			"stock_mutations_total",
			metric.WithDescription("Stock line mutations by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		eventDuration, err = meter.Float64Histogram(
			"stock_event_duration_seconds",
			metric.WithDescription("Time to handle one inbound event, retries included"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordEvent(ctx context.Context, kind Kind, outcome Outcome, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", string(outcome)),
	))
	eventDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("kind", string(kind)),
	))
}

func recordMutations(ctx context.Context, muts []Mutation) {
	if err := initMetrics(); err != nil {
		return
	}
	for _, m := range muts {
		mutationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", m.Result.String())))
	}
}
