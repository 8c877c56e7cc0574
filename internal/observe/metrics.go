// Package observe provides OpenTelemetry metrics for the Lexigraph
// training pipeline.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lexigraph metrics.
const meterName = "github.com/voulterra/lexigraph"

// Metrics holds all OpenTelemetry metric instruments for the compiler.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ParseDuration tracks grammar parsing latency per intent.
	ParseDuration metric.Float64Histogram

	// ExpandDuration tracks template expansion latency per intent.
	ExpandDuration metric.Float64Histogram

	// TrainDuration tracks end-to-end training pass latency.
	TrainDuration metric.Float64Histogram

	// SentencesGenerated counts concrete sentences produced. Use with
	// attribute: attribute.String("intent", ...)
	SentencesGenerated metric.Int64Counter

	// TrainingPasses counts training passes. Use with attributes:
	//   attribute.String("profile", ...), attribute.String("status", ...)
	// where status is one of "completed", "skipped", "failed".
	TrainingPasses metric.Int64Counter

	// SlotProgramRuns counts external slot value program invocations.
	// Use with attributes:
	//   attribute.String("command", ...), attribute.String("status", ...)
	SlotProgramRuns metric.Int64Counter

	// UnknownWords records the unknown-word count of the latest pass.
	UnknownWords metric.Int64Gauge
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized
// for corpus compilation, which ranges from milliseconds for small
// profiles to minutes for combinatorial ones.
var durationBuckets = []float64{
	0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ParseDuration, err = m.Float64Histogram("lexigraph.parse.duration",
		metric.WithDescription("Latency of grammar parsing per intent."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExpandDuration, err = m.Float64Histogram("lexigraph.expand.duration",
		metric.WithDescription("Latency of template expansion per intent."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TrainDuration, err = m.Float64Histogram("lexigraph.train.duration",
		metric.WithDescription("End-to-end training pass latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SentencesGenerated, err = m.Int64Counter("lexigraph.sentences.generated",
		metric.WithDescription("Concrete sentences produced, by intent."),
	); err != nil {
		return nil, err
	}
	if met.TrainingPasses, err = m.Int64Counter("lexigraph.training.passes",
		metric.WithDescription("Training passes by profile and status."),
	); err != nil {
		return nil, err
	}
	if met.SlotProgramRuns, err = m.Int64Counter("lexigraph.slot_program.runs",
		metric.WithDescription("External slot value program invocations by slot and status."),
	); err != nil {
		return nil, err
	}

	if met.UnknownWords, err = m.Int64Gauge("lexigraph.unknown_words",
		metric.WithDescription("Vocabulary words without a known pronunciation after the latest pass."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
