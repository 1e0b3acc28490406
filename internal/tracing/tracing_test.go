package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, ok := otel.GetTracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected noop provider, got %T", otel.GetTracerProvider())
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{Enabled: true, Exporter: "stdout", Output: &buf})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "chat.round", trace.WithAttributes(IntAttr("round", 1)))
	End(span, nil)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "chat.round")
	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestEndRecordsStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	_, ok := StartSpan(context.Background(), "tool.execute")
	End(ok, nil)
	_, failed := StartSpan(context.Background(), "tool.execute")
	End(failed, errors.New("boom"))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
