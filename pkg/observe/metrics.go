// Package observe provides application-wide observability primitives for
// MyPitch: OpenTelemetry metrics and the provider bootstrap that exposes them
// for Prometheus scraping.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all MyPitch metrics.
const meterName = "github.com/sergiialekseev/mypitch-saas-sub000"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// SessionsStarted counts live interview sessions started.
	SessionsStarted metric.Int64Counter

	// Reconnects counts transport reconnect attempts. Use with attribute:
	//   attribute.Int("attempt", ...)
	Reconnects metric.Int64Counter

	// NonFatalErrors counts best-effort failures that were swallowed to keep
	// the interview alive. Use with attribute:
	//   attribute.String("op", ...)
	NonFatalErrors metric.Int64Counter

	// TranscriptTurns counts transcript turns flushed to the backend. Use
	// with attributes:
	//   attribute.String("speaker", ...), attribute.String("status", ...)
	TranscriptTurns metric.Int64Counter

	// ReportRequests counts report generation requests. Use with attribute:
	//   attribute.String("status", ...)
	ReportRequests metric.Int64Counter

	// SessionDuration tracks wall-clock interview duration in seconds.
	SessionDuration metric.Float64Histogram

	// ReportDuration tracks report generation latency in seconds.
	ReportDuration metric.Float64Histogram

	// ActiveSessions tracks the number of live sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.SessionsStarted, err = meter.Int64Counter("mypitch.sessions.started",
		metric.WithDescription("Live interview sessions started")); err != nil {
		return nil, err
	}
	if m.Reconnects, err = meter.Int64Counter("mypitch.transport.reconnects",
		metric.WithDescription("Transport reconnect attempts")); err != nil {
		return nil, err
	}
	if m.NonFatalErrors, err = meter.Int64Counter("mypitch.errors.nonfatal",
		metric.WithDescription("Best-effort failures swallowed during a session")); err != nil {
		return nil, err
	}
	if m.TranscriptTurns, err = meter.Int64Counter("mypitch.transcript.turns",
		metric.WithDescription("Transcript turns flushed to the backend")); err != nil {
		return nil, err
	}
	if m.ReportRequests, err = meter.Int64Counter("mypitch.reports.requests",
		metric.WithDescription("Report generation requests")); err != nil {
		return nil, err
	}
	if m.SessionDuration, err = meter.Float64Histogram("mypitch.session.duration",
		metric.WithDescription("Interview session duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ReportDuration, err = meter.Float64Histogram("mypitch.report.duration",
		metric.WithDescription("Report generation latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter("mypitch.sessions.active",
		metric.WithDescription("Currently live interview sessions")); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics instance built on the
// global meter provider. If instrument creation fails the instance falls back
// to no-op instruments so callers never need nil checks.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil || m == nil {
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
