// Package observability wires OpenTelemetry metrics to a Prometheus scrape endpoint.
package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics installs a meter provider exporting to a private Prometheus registry.
// It returns the /metrics handler, the provider and its shutdown function.
func InitMetrics() (http.Handler, metric.MeterProvider, func(context.Context) error, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), provider, provider.Shutdown, nil
}

// Outcome label values.
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeRetry      = "retry"
	OutcomeDuplicate  = "duplicate"
	OutcomeDeadLetter = "dead_letter"
	OutcomeKept       = "kept"
	OutcomeDropped    = "dropped"
)

// Metrics holds the pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	jobs   metric.Int64Counter
	images metric.Int64Counter
	rows   metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/ariefcatur/go-image-orders")

	jobs, err := meter.Int64Counter("image_jobs_total",
		metric.WithDescription("Image jobs handled, by outcome."))
	if err != nil {
		return nil, err
	}
	images, err := meter.Int64Counter("images_processed_total",
		metric.WithDescription("Individual images attempted, by outcome."))
	if err != nil {
		return nil, err
	}
	rows, err := meter.Int64Counter("sku_rows_ingested_total",
		metric.WithDescription("Uploaded rows kept or dropped during ingestion."))
	if err != nil {
		return nil, err
	}
	return &Metrics{jobs: jobs, images: images, rows: rows}, nil
}

func (m *Metrics) JobHandled(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) ImageProcessed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.images.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RowsIngested(ctx context.Context, kept, dropped int) {
	if m == nil {
		return
	}
	m.rows.Add(ctx, int64(kept), metric.WithAttributes(attribute.String("outcome", OutcomeKept)))
	m.rows.Add(ctx, int64(dropped), metric.WithAttributes(attribute.String("outcome", OutcomeDropped)))
}
