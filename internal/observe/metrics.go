// Package observe provides observability primitives for the sentence
// corpus engine: OpenTelemetry metric instruments and SDK provider
// setup with a Prometheus exporter bridge.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with a custom
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
const meterName = "github.com/dekiesel/wyoming-vosk"

// Cache lookup results recorded on [Metrics.CacheLookups].
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheRebuild = "rebuild"
)

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types
// handle their own synchronisation.
type Metrics struct {
	// BuildDuration tracks full corpus build latency per language.
	// Use with attribute.String("language", ...).
	BuildDuration metric.Float64Histogram

	// SentencesGenerated counts corpus rows written during builds.
	// Use with attribute.String("language", ...).
	SentencesGenerated metric.Int64Counter

	// WordsGenerated counts unique vocabulary words written during
	// builds. Use with attribute.String("language", ...).
	WordsGenerated metric.Int64Counter

	// CacheLookups counts configuration cache lookups. Use with
	// attributes: attribute.String("language", ...),
	// attribute.String("result", CacheHit|CacheMiss|CacheRebuild).
	CacheLookups metric.Int64Counter

	// Corrections counts correction calls by outcome. Use with
	// attributes: attribute.String("language", ...),
	// attribute.String("outcome", ...).
	Corrections metric.Int64Counter

	// CorrectionDistance tracks the winning edit distance of accepted
	// corrections. Use with attribute.String("language", ...).
	CorrectionDistance metric.Float64Histogram
}

// buildBuckets defines histogram bucket boundaries (in seconds) sized
// for corpus builds, which range from milliseconds for toy grammars to
// minutes for large Cartesian fan-outs.
var buildBuckets = []float64{
	0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300,
}

// distanceBuckets covers the useful weighted edit-distance range; the
// substitution weight of 3 makes large values common for bad matches.
var distanceBuckets = []float64{
	0, 1, 2, 3, 5, 8, 13, 21, 34,
}

// NewMetrics creates a fully initialised [Metrics] struct using the
// given [metric.MeterProvider]. Returns an error if any instrument
// creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BuildDuration, err = m.Float64Histogram("sentences.build.duration",
		metric.WithDescription("Latency of a full corpus build for one language."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buildBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SentencesGenerated, err = m.Int64Counter("sentences.generated",
		metric.WithDescription("Total sentence rows written during corpus builds."),
	); err != nil {
		return nil, err
	}
	if met.WordsGenerated, err = m.Int64Counter("sentences.words.generated",
		metric.WithDescription("Total unique vocabulary words written during corpus builds."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("sentences.cache.lookups",
		metric.WithDescription("Configuration cache lookups by language and result."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("sentences.corrections",
		metric.WithDescription("Correction calls by language and outcome."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionDistance, err = m.Float64Histogram("sentences.correction.distance",
		metric.WithDescription("Winning weighted edit distance of accepted corrections."),
		metric.WithExplicitBucketBoundaries(distanceBuckets...),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating
// it on first call using [otel.GetMeterProvider]. Subsequent calls
// return the same pointer. Panics if instrument creation fails (should
// not happen with the global provider).
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

// RecordBuild records one completed corpus build: its duration and the
// row counts it produced.
func (m *Metrics) RecordBuild(ctx context.Context, language string, seconds float64, sentences, words int64) {
	if m == nil {
		return
	}
	lang := metric.WithAttributes(attribute.String("language", language))
	m.BuildDuration.Record(ctx, seconds, lang)
	m.SentencesGenerated.Add(ctx, sentences, lang)
	m.WordsGenerated.Add(ctx, words, lang)
}

// RecordCacheLookup records a configuration cache lookup result.
func (m *Metrics) RecordCacheLookup(ctx context.Context, language, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("result", result),
		),
	)
}

// RecordCorrection records a correction call outcome; distance is only
// meaningful (and only recorded) when the correction was accepted.
func (m *Metrics) RecordCorrection(ctx context.Context, language, outcome string, distance float64, accepted bool) {
	if m == nil {
		return
	}
	m.Corrections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("outcome", outcome),
		),
	)
	if accepted {
		m.CorrectionDistance.Record(ctx, distance,
			metric.WithAttributes(attribute.String("language", language)),
		)
	}
}
