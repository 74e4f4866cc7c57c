// Package observability provides OpenTelemetry metrics for the intake
// pipeline: submission outcomes by terminal state, rejections by gate, and
// end-to-end pipeline duration.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/pipeline"
)

// Config configures the metrics provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // e.g. "localhost:4317"; empty disables export
	Insecure       bool
}

// Provider manages the meter and its instruments. With no OTLP endpoint
// configured it records against the global (no-op) meter provider, so the
// pipeline can always carry an Observer.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	logger        *slog.Logger

	submissions  metric.Int64Counter
	rejections   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// New creates a provider and, when an endpoint is configured, an OTLP gRPC
// metric exporter behind it.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{logger: slog.Default().With("component", "observability")}

	meterProvider := otel.GetMeterProvider()
	if cfg.OTLPEndpoint != "" {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}

		res, err := resource.Merge(
			resource.Default(),
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(cfg.ServiceName),
				semconv.ServiceVersion(cfg.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("otel resource: %w", err)
		}

		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		)
		meterProvider = p.meterProvider
	}

	meter := meterProvider.Meter("intake.pipeline")

	var err error
	if p.submissions, err = meter.Int64Counter("intake.submissions",
		metric.WithDescription("Pipeline executions by terminal state"),
	); err != nil {
		return nil, err
	}
	if p.rejections, err = meter.Int64Counter("intake.rejections",
		metric.WithDescription("Gate rejections by reason"),
	); err != nil {
		return nil, err
	}
	if p.durationHist, err = meter.Float64Histogram("intake.pipeline.duration",
		metric.WithDescription("Pipeline execution duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return p, nil
}

// ObserveSubmission implements pipeline.Observer.
func (p *Provider) ObserveSubmission(ctx context.Context, state pipeline.State, reason audit.Kind, elapsed time.Duration) {
	stateAttr := attribute.String("state", string(state))
	p.submissions.Add(ctx, 1, metric.WithAttributes(stateAttr))
	if state == pipeline.StateFailed {
		p.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
	}
	p.durationHist.Record(ctx, float64(elapsed.Microseconds())/1000.0, metric.WithAttributes(stateAttr))
}

// Shutdown flushes and stops the exporter, if one was configured.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		p.logger.Error("meter provider shutdown failed", "error", err)
		return err
	}
	return nil
}
