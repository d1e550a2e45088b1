package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/severity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Capture outcomes.
const (
	OutcomeCaptured = "captured"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics records comparison and capture throughput. It implements
// compare.Recorder.
type Metrics struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	// Unit metrics (Latency, Traffic, Errors, Saturation)
	UnitDuration metric.Float64Histogram
	UnitsTotal   metric.Int64Counter
	UnitsActive  metric.Int64UpDownCounter

	// Job metrics
	JobDuration metric.Float64Histogram
	JobsTotal   metric.Int64Counter

	// Capture metrics
	CapturesTotal metric.Int64Counter
}

var _ compare.Recorder = (*Metrics)(nil)

// NewMetrics creates the metrics on a dedicated Prometheus registry and
// returns the handler serving it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("tagcompare")
	m := &Metrics{meter: meter, provider: provider}

	m.UnitDuration, err = meter.Float64Histogram(
		"compare_unit_duration_seconds",
		metric.WithDescription("Time to compare one campaign/size/type unit in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, nil, err
	}

	m.UnitsTotal, err = meter.Int64Counter(
		"compare_units_total",
		metric.WithDescription("Total number of compared units by severity"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.UnitsActive, err = meter.Int64UpDownCounter(
		"compare_units_active",
		metric.WithDescription("Number of units being compared (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"compare_job_duration_seconds",
		metric.WithDescription("Comparison job duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsTotal, err = meter.Int64Counter(
		"compare_jobs_total",
		metric.WithDescription("Total number of comparison jobs by final status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CapturesTotal, err = meter.Int64Counter(
		"captures_total",
		metric.WithDescription("Total number of tag captures by config and outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// UnitStarted records a unit entering a worker.
func (m *Metrics) UnitStarted(ctx context.Context, group string) {
	m.UnitsActive.Add(ctx, 1, metric.WithAttributes(groupAttr(group)))
}

// UnitCompleted records a unit leaving a worker with its severity.
func (m *Metrics) UnitCompleted(ctx context.Context, group string, level severity.Level, elapsed time.Duration) {
	m.UnitsActive.Add(ctx, -1, metric.WithAttributes(groupAttr(group)))
	attrs := metric.WithAttributes(groupAttr(group), levelAttr(level.String()))
	m.UnitsTotal.Add(ctx, 1, attrs)
	m.UnitDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// JobCompleted records a finished job.
func (m *Metrics) JobCompleted(ctx context.Context, group string, status compare.Status, elapsed time.Duration) {
	attrs := metric.WithAttributes(groupAttr(group), statusAttr(string(status)))
	m.JobsTotal.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordCaptures records n captures of a config with the same outcome.
func (m *Metrics) RecordCaptures(ctx context.Context, config, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.CapturesTotal.Add(ctx, int64(n), metric.WithAttributes(configAttr(config), outcomeAttr(outcome)))
}
