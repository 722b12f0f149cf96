// Package observability records build and disassembly metrics and exposes
// them in the Prometheus text format.
package observability

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	attrSuccess = "success"
	attrStage   = "stage"
)

// Metrics holds the adapter's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	BuildDuration      metric.Float64Histogram
	BuildsTotal        metric.Int64Counter
	ToolchainNonZero   metric.Int64Counter
	DisassemblyTotal   metric.Int64Counter
	DisassemblyErrors  metric.Int64Counter
	DisassemblyLatency metric.Float64Histogram
}

// NewMetrics registers all instruments with a dedicated Prometheus registry
// and returns the handler serving it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("runasm")
	m := &Metrics{provider: provider}

	m.BuildDuration, err = meter.Float64Histogram(
		"build_duration_seconds",
		metric.WithDescription("Toolchain run plus artifact staging, in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.BuildsTotal, err = meter.Int64Counter(
		"builds_total",
		metric.WithDescription("Total builds by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ToolchainNonZero, err = meter.Int64Counter(
		"toolchain_nonzero_exits_total",
		metric.WithDescription("Toolchain runs that exited non-zero, regardless of build outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DisassemblyTotal, err = meter.Int64Counter(
		"disassemblies_total",
		metric.WithDescription("Total disassembler invocations"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DisassemblyErrors, err = meter.Int64Counter(
		"disassembly_errors_total",
		metric.WithDescription("Disassembler invocations that produced no listing, by stage"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DisassemblyLatency, err = meter.Float64Histogram(
		"disassembly_duration_seconds",
		metric.WithDescription("Disassembler latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordBuild records a finished build.
func (m *Metrics) RecordBuild(ctx context.Context, success bool, toolchainExit int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool(attrSuccess, success))
	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, d.Seconds(), attrs)
	if toolchainExit != 0 {
		m.ToolchainNonZero.Add(ctx, 1)
	}
}

// RecordDisassembly records a disassembler invocation. stage is empty on
// success.
func (m *Metrics) RecordDisassembly(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.DisassemblyTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool(attrSuccess, stage == "")))
	m.DisassemblyLatency.Record(ctx, d.Seconds())
	if stage != "" {
		m.DisassemblyErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStage, stage)))
	}
}
