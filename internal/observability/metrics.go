package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/BhargavRaval15/url-shortner"

// Redirect outcomes reported on the redirects counter.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

// NewMeterProvider builds a meter provider whose readings are exposed
// through the returned Prometheus registry.
func NewMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, *prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return mp, registry, nil
}

// Metrics holds the application counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	linksCreated  metric.Int64Counter
	redirects     metric.Int64Counter
	clicksQueued  metric.Int64Counter
	clicksDropped metric.Int64Counter
	clicksFailed  metric.Int64Counter
}

// NewMetrics registers the application instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.linksCreated, err = meter.Int64Counter("links.created",
		metric.WithDescription("Short links created")); err != nil {
		return nil, err
	}
	if m.redirects, err = meter.Int64Counter("redirects",
		metric.WithDescription("Redirect requests by outcome")); err != nil {
		return nil, err
	}
	if m.clicksQueued, err = meter.Int64Counter("click_events.queued",
		metric.WithDescription("Click events accepted by the recorder")); err != nil {
		return nil, err
	}
	if m.clicksDropped, err = meter.Int64Counter("click_events.dropped",
		metric.WithDescription("Click events dropped because the recorder was full or stopped")); err != nil {
		return nil, err
	}
	if m.clicksFailed, err = meter.Int64Counter("click_events.failed",
		metric.WithDescription("Click events that could not be stored")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) LinkCreated(ctx context.Context, custom bool) {
	if m == nil {
		return
	}
	m.linksCreated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("custom_alias", custom)))
}

func (m *Metrics) Redirect(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.redirects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) ClickQueued(ctx context.Context) {
	if m == nil {
		return
	}
	m.clicksQueued.Add(ctx, 1)
}

func (m *Metrics) ClickDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.clicksDropped.Add(ctx, 1)
}

func (m *Metrics) ClickFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.clicksFailed.Add(ctx, 1)
}
