// Package observe provides application-wide observability primitives for the
// Orange Sulphur voice server: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all server metrics.
const meterName = "github.com/saalsai1/SER598-Group2-ma"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// InterpretDuration tracks how long the command interpreter takes to
	// match and execute one transcript.
	InterpretDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// Commands counts interpreted transcripts. Use with attributes:
	//   attribute.String("action", ...), attribute.String("executed", ...)
	Commands metric.Int64Counter

	// Utterances counts synthesized utterances. Use with attribute:
	//   attribute.String("kind", ...)
	Utterances metric.Int64Counter

	// RecognitionRestarts counts automatic recognition restarts.
	RecognitionRestarts metric.Int64Counter

	// DiscardedTranscripts counts final transcripts dropped because the system
	// was speaking when they arrived.
	DiscardedTranscripts metric.Int64Counter

	// --- Error counters ---

	// RecognitionErrors counts recognition engine errors. Use with attribute:
	//   attribute.String("code", ...)
	RecognitionErrors metric.Int64Counter

	// SynthesisErrors counts failed utterances. Use with attribute:
	//   attribute.String("engine", ...)
	SynthesisErrors metric.Int64Counter

	// --- Gauges ---

	// ConnectedClients tracks the number of open shell connections.
	ConnectedClients metric.Int64UpDownCounter

	// ActiveSessions tracks the number of sessions with hands-free mode on.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) tuned for
// sub-second interactive work.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.InterpretDuration, err = m.Float64Histogram("sulphur.interpret.duration",
		metric.WithDescription("Latency of voice command interpretation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sulphur.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Commands, err = m.Int64Counter("sulphur.voice.commands",
		metric.WithDescription("Total interpreted transcripts by action and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("sulphur.voice.utterances",
		metric.WithDescription("Total synthesized utterances by kind."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionRestarts, err = m.Int64Counter("sulphur.voice.recognition.restarts",
		metric.WithDescription("Total automatic recognition restarts."),
	); err != nil {
		return nil, err
	}
	if met.DiscardedTranscripts, err = m.Int64Counter("sulphur.voice.transcripts.discarded",
		metric.WithDescription("Final transcripts dropped while the system was speaking."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.RecognitionErrors, err = m.Int64Counter("sulphur.voice.recognition.errors",
		metric.WithDescription("Total recognition errors by engine error code."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisErrors, err = m.Int64Counter("sulphur.voice.synthesis.errors",
		metric.WithDescription("Total failed utterances by engine."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ConnectedClients, err = m.Int64UpDownCounter("sulphur.shell.clients",
		metric.WithDescription("Number of open shell connections."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("sulphur.voice.active_sessions",
		metric.WithDescription("Number of sessions with hands-free mode on."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCommand records one interpreted transcript.
func (m *Metrics) RecordCommand(ctx context.Context, action string, executed bool) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("executed", strconv.FormatBool(executed)),
		),
	)
}

// RecordUtterance records one synthesized utterance of the given kind
// ("announcement", "response", "farewell").
func (m *Metrics) RecordUtterance(ctx context.Context, kind string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordRecognitionError records one recognition engine error.
func (m *Metrics) RecordRecognitionError(ctx context.Context, code string) {
	m.RecognitionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", code)),
	)
}

// RecordSynthesisError records one failed utterance.
func (m *Metrics) RecordSynthesisError(ctx context.Context, engine string) {
	m.SynthesisErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}
