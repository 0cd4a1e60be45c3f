package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DiscardsWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := Init(context.Background(), "bom-test", "0.0.0", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer("bom-test").Start(context.Background(), "unit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_OTLPEndpoint(t *testing.T) {
	// The exporter connects lazily, so construction succeeds without a collector
	shutdown, err := Init(context.Background(), "bom-test", "0.0.0", "http://127.0.0.1:4318")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
