package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup(t *testing.T) {
	t.Run("noop when nothing is configured", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), Settings{ServiceName: "test"})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, shutdown(ctx))
	})

	t.Run("stdout exports spans on shutdown", func(t *testing.T) {
		var buf bytes.Buffer
		shutdown, err := Setup(context.Background(), Settings{
			ServiceName:    "test",
			ServiceVersion: "v0.0.0",
			Stdout:         true,
			Writer:         &buf,
		})
		require.NoError(t, err)

		_, span := otel.Tracer("telemetry-test").Start(context.Background(), "expense.create")
		span.End()

		require.NoError(t, shutdown(context.Background()))
		require.Contains(t, buf.String(), "expense.create")
	})

	t.Run("rejects unknown protocol", func(t *testing.T) {
		_, err := Setup(context.Background(), Settings{
			ServiceName: "test",
			Endpoint:    "http://192.0.2.1:4318",
			Protocol:    "thrift",
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "thrift")
	})

	for _, protocol := range []string{ProtocolHTTP, ProtocolGRPC} {
		t.Run("creates otlp exporters over "+protocol, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), Settings{
				ServiceName: "test",
				Endpoint:    "http://192.0.2.1:4318",
				Protocol:    protocol,
			})
			require.NoError(t, err)

			// The endpoint is unreachable; only check that shutdown returns.
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = shutdown(ctx)
		})
	}
}
