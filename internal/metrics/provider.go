package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
)

// NewProvider builds the meter provider for the configured exporter.
// Returns a nil provider when metrics are disabled; callers must treat
// nil as "metrics off" and skip SetupMetrics.
func NewProvider(cfg Config) (*sdk.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	reader, err := newReader(cfg)
	if err != nil {
		return nil, err
	}

	return sdk.NewMeterProvider(sdk.WithReader(reader)), nil
}

func newReader(cfg Config) (sdk.Reader, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	switch cfg.Exporter {
	case "", ExporterStdout:
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}

		return sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval)), nil
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}

		exporter, err := otlpmetrichttp.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp http exporter: %w", err)
		}

		return sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval)), nil
	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}

		exporter, err := otlpmetricgrpc.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp grpc exporter: %w", err)
		}

		return sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval)), nil
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", cfg.Exporter)
	}
}

var (
	requestCount       metric.Int64Counter
	requestDuration    metric.Float64Histogram
	decisionCount      metric.Int64Counter
	denialCount        metric.Int64Counter
	resolutionDuration metric.Float64Histogram
)

// SetupMetrics installs the provider as the global meter provider and
// creates the shared instruments. Must run before traffic is served;
// the Record helpers silently drop data until it has.
func SetupMetrics(provider *sdk.MeterProvider, name string) error {
	otel.SetMeterProvider(provider)

	meter := provider.Meter(name)

	var err error

	requestCount, err = meter.Int64Counter(
		"approvalhub.requests",
		metric.WithDescription("Number of HTTP requests served."),
	)
	if err != nil {
		return fmt.Errorf("create request counter: %w", err)
	}

	requestDuration, err = meter.Float64Histogram(
		"approvalhub.request.duration",
		metric.WithDescription("HTTP request latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create request histogram: %w", err)
	}

	decisionCount, err = meter.Int64Counter(
		"approvalhub.policy.decisions",
		metric.WithDescription("Policy decisions by outcome."),
	)
	if err != nil {
		return fmt.Errorf("create decision counter: %w", err)
	}

	denialCount, err = meter.Int64Counter(
		"approvalhub.policy.denials",
		metric.WithDescription("Denied requests by action."),
	)
	if err != nil {
		return fmt.Errorf("create denial counter: %w", err)
	}

	resolutionDuration, err = meter.Float64Histogram(
		"approvalhub.scope.resolution.duration",
		metric.WithDescription("Scope resolution latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create resolution histogram: %w", err)
	}

	return nil
}
