// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge so the pipeline
// can be watched through the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/scorevox/scorevox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// Utterances counts segmented utterances. Use with attribute:
	//   attribute.String("status", "captured"|"discarded")
	Utterances metric.Int64Counter

	// DuplicatesSuppressed counts transcriptions dropped as duplicates of
	// their predecessor.
	DuplicatesSuppressed metric.Int64Counter

	// QueueDrops counts utterances dropped because the transcription queue
	// was full.
	QueueDrops metric.Int64Counter

	// ParseResults counts parser outcomes per transcription. Use with
	// attribute: attribute.String("status", "parsed"|"unparsed")
	ParseResults metric.Int64Counter

	// RosterWrites counts score write attempts. Use with attribute:
	//   attribute.String("status", "ok"|"no_match"|"error")
	RosterWrites metric.Int64Counter

	// ActiveSessions tracks the number of live recognition sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech transcription latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("scorevox.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("scorevox.utterances",
		metric.WithDescription("Segmented utterances by status."),
	); err != nil {
		return nil, err
	}
	if met.DuplicatesSuppressed, err = m.Int64Counter("scorevox.duplicates.suppressed",
		metric.WithDescription("Transcriptions suppressed as duplicates."),
	); err != nil {
		return nil, err
	}
	if met.QueueDrops, err = m.Int64Counter("scorevox.queue.drops",
		metric.WithDescription("Utterances dropped due to a full transcription queue."),
	); err != nil {
		return nil, err
	}
	if met.ParseResults, err = m.Int64Counter("scorevox.parse.results",
		metric.WithDescription("Parser outcomes per transcription by status."),
	); err != nil {
		return nil, err
	}
	if met.RosterWrites, err = m.Int64Counter("scorevox.roster.writes",
		metric.WithDescription("Score write attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("scorevox.active_sessions",
		metric.WithDescription("Number of live recognition sessions."),
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

// RecordUtterance records one segmented utterance with its status.
func (m *Metrics) RecordUtterance(ctx context.Context, status string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordParse records one parser outcome with its status.
func (m *Metrics) RecordParse(ctx context.Context, status string) {
	m.ParseResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordRosterWrite records one score write attempt with its status.
func (m *Metrics) RecordRosterWrite(ctx context.Context, status string) {
	m.RosterWrites.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}
