package exporters

import (
	"context"
	"testing"

	"smallbiznis-reputation/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestProtocol(t *testing.T) {
	cases := map[string]string{"": "grpc", "GRPC": "grpc", "http": "http", "http/protobuf": "http"}
	for in, want := range cases {
		cfg := &config.Config{}
		cfg.Otel.Protocol = in
		got, err := Protocol(cfg)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	cfg := &config.Config{}
	cfg.Otel.Protocol = "zipkin"
	_, err := Protocol(cfg)
	require.Error(t, err)
}

func TestNewRejectsUnknownProtocol(t *testing.T) {
	cfg := &config.Config{}
	cfg.Otel.Addr = "localhost:4317"
	cfg.Otel.Protocol = "thrift"
	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported otel protocol")
}

func TestNewBuildsExporterForEachProtocol(t *testing.T) {
	for _, proto := range []string{"grpc", "http"} {
		cfg := &config.Config{}
		cfg.Otel.Addr = "localhost:4317"
		cfg.Otel.Protocol = proto
		cfg.Otel.Insecure = true
		cfg.Otel.Headers = map[string]string{"x-tenant": "reviews"}

		exp, err := New(context.Background(), cfg)
		require.NoError(t, err, proto)
		require.NoError(t, exp.Shutdown(context.Background()))
	}
}
