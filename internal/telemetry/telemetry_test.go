package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dharsanguruparan/skypulse/internal/config"
	"github.com/dharsanguruparan/skypulse/internal/logger"
)

func TestInitNoneIsNoop(t *testing.T) {
	tp, shutdown, err := Init(context.Background(), logger.NewNop(), Config{Exporter: config.TraceExporterNone})
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, tp)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := Init(context.Background(), logger.NewNop(), Config{
		ServiceName: "skypulse-test",
		Exporter:    config.TraceExporterStdout,
		SampleRatio: 1,
		Writer:      &buf,
	})
	require.NoError(t, err)
	assert.Same(t, tp, otel.GetTracerProvider())

	_, span := tp.Tracer("test").Start(context.Background(), "orchestrator.run")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "orchestrator.run")
	assert.Contains(t, buf.String(), "skypulse-test")
}

func TestInitUnknownExporter(t *testing.T) {
	_, _, err := Init(context.Background(), logger.NewNop(), Config{Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown trace exporter")
}
