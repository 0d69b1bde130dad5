package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ApplyRequestsTotal    metric.Int64Counter
	ApplyDurationSeconds  metric.Float64Histogram
	OperationsTotal       metric.Int64Counter
	ResolverCacheHits     metric.Int64Counter
	ResolverProviderCalls metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments only once,
// using the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripAssistant")
		var err error
		m := &AppMetrics{}

		m.ApplyRequestsTotal, err = meter.Int64Counter(
			"apply_requests_total",
			metric.WithDescription("Total number of change-apply calls completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create apply_requests_total: %v", err)
		}

		m.ApplyDurationSeconds, err = meter.Float64Histogram(
			"apply_duration_seconds",
			metric.WithDescription("Duration of change-apply calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create apply_duration_seconds: %v", err)
		}

		m.OperationsTotal, err = meter.Int64Counter(
			"change_operations_total",
			metric.WithDescription("Total change operations dispatched, by kind and outcome"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create change_operations_total: %v", err)
		}

		m.ResolverCacheHits, err = meter.Int64Counter(
			"resolver_cache_hits_total",
			metric.WithDescription("Entity resolutions served from the in-memory cache"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create resolver_cache_hits_total: %v", err)
		}

		m.ResolverProviderCalls, err = meter.Int64Counter(
			"resolver_provider_calls_total",
			metric.WithDescription("Lookups that fell through to the external mapping provider"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create resolver_provider_calls_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized metrics instance, or nil when metrics were
// never initialized (tests).
func Get() *AppMetrics {
	return appMetrics
}
