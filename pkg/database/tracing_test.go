package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		tp.Shutdown(context.Background()) //nolint:errcheck
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func spanAttrs(span tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string)
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestTraceQuery_Postgres(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetUserByEmail", "SELECT id FROM users WHERE email = $1")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.GetUserByEmail", spans[0].Name)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, SystemPostgres, attrs["db.system"])
	assert.Equal(t, "GetUserByEmail", attrs["db.operation"])
	assert.Equal(t, "SELECT id FROM users WHERE email = $1", attrs["db.statement"])
}

func TestTraceOperation_RedisOmitsStatementAndRecordsError(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceOperation(context.Background(), SystemRedis, "BlacklistGet", "")
	end(errors.New("i/o timeout"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, SystemRedis, attrs["db.system"])
	_, hasStatement := attrs["db.statement"]
	assert.False(t, hasStatement)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTraceQuery_SlowQueryLogged(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "RevokeToken", "INSERT INTO token_blacklist")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow store operation")
	assert.Contains(t, buf.String(), "RevokeToken")
}

func TestTraceQuery_SlowQueryDisabled(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(0, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "IsRevoked", "SELECT 1")
	end(nil)

	assert.Empty(t, buf.String())
}
