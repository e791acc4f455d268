package metrics

import "time"

const (
	// ExporterStdout periodically dumps metrics to stdout. Default.
	ExporterStdout = "stdout"

	// ExporterOTLPHTTP pushes metrics to an OTLP collector over HTTP.
	ExporterOTLPHTTP = "otlp-http"

	// ExporterOTLPGRPC pushes metrics to an OTLP collector over gRPC.
	ExporterOTLPGRPC = "otlp-grpc"
)

type Config struct {
	Enabled bool `conf:"enabled" yaml:"enabled" json:"enabled"`

	// Exporter selects where metrics go: stdout, otlp-http or otlp-grpc.
	Exporter string `conf:"exporter" yaml:"exporter" json:"exporter"`

	// Endpoint is the OTLP collector address, e.g. "collector:4318".
	// Ignored for the stdout exporter.
	Endpoint string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`

	// Insecure disables TLS for OTLP exporters.
	Insecure bool `conf:"insecure" yaml:"insecure" json:"insecure"`

	// Interval between metric exports. Defaults to 30s.
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}
