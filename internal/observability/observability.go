package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	ServiceName      string
	Environment      string // "development", "staging", "production"
	LogLevel         string
	OTLPEndpoint     string // e.g., "localhost:4317"; empty means no export
	TraceSampleRatio float64
}

// Observability holds all telemetry providers
type Observability struct {
	Logger         *slog.Logger
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prometheus.Registry
	Metrics        *Metrics
}

// Setup initializes all observability components
func Setup(ctx context.Context, cfg Config) (*Observability, error) {
	logger := NewLogger(cfg.Environment, cfg.ServiceName, cfg.LogLevel)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp, err := NewTracerProvider(ctx, res, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		return nil, err
	}

	mp, registry, err := NewMeterProvider(res)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}

	logger.Info("observability initialized",
		slog.String("environment", cfg.Environment),
		slog.Bool("trace_export", cfg.OTLPEndpoint != ""),
	)

	return &Observability{
		Logger:         logger,
		TracerProvider: tp,
		MeterProvider:  mp,
		Registry:       registry,
		Metrics:        metrics,
	}, nil
}

// Shutdown gracefully shuts down all telemetry providers
func (o *Observability) Shutdown(ctx context.Context) {
	o.Logger.Info("shutting down observability")

	if o.TracerProvider != nil {
		if err := o.TracerProvider.Shutdown(ctx); err != nil {
			o.Logger.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		}
	}
	if o.MeterProvider != nil {
		if err := o.MeterProvider.Shutdown(ctx); err != nil {
			o.Logger.Error("failed to shutdown meter provider", slog.String("error", err.Error()))
		}
	}
}
