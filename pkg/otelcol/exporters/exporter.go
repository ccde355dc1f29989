package exporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smallbiznis-reputation/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const defaultTimeout = 10 * time.Second

// Protocol selects the OTLP transport. Empty means grpc.
func Protocol(cfg *config.Config) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(cfg.Otel.Protocol)); p {
	case "", "grpc":
		return "grpc", nil
	case "http", "http/protobuf":
		return "http", nil
	default:
		return "", fmt.Errorf("unsupported otel protocol %q", cfg.Otel.Protocol)
	}
}

// NewClient builds the OTLP trace client for the configured collector.
func NewClient(cfg *config.Config) (otlptrace.Client, error) {
	proto, err := Protocol(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Otel.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if proto == "http" {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Otel.Addr),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
			otlptracehttp.WithTimeout(timeout),
		}
		if cfg.Otel.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Otel.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Otel.Headers))
		}
		return otlptracehttp.NewClient(opts...), nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
		otlptracegrpc.WithCompressor("gzip"),
		otlptracegrpc.WithTimeout(timeout),
	}
	if cfg.Otel.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Otel.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Otel.Headers))
	}
	return otlptracegrpc.NewClient(opts...), nil
}

// New starts an exporter for the configured collector. The client dials
// lazily, so an unreachable collector does not block startup.
func New(ctx context.Context, cfg *config.Config) (*otlptrace.Exporter, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return otlptrace.New(ctx, client)
}
