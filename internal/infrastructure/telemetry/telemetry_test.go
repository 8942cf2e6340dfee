package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestDisabledProvidersAreNoops(t *testing.T) {
	ctx := context.Background()
	cfg := config.TelemetryConfig{Enabled: false, MetricsEnabled: true, LogsEnabled: true}

	tel, err := Setup(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tel.Tracer.IsEnabled())
	assert.False(t, tel.Meter.IsEnabled())
	assert.False(t, tel.Logs.IsEnabled())
	assert.False(t, tel.Profiler.IsEnabled())
	assert.NotNil(t, tel.Tracer.Tracer("x"))
	assert.NotNil(t, tel.Meter.Meter("x"))
	assert.False(t, tel.Logs.ZapCore("svc", zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))

	require.NoError(t, tel.Shutdown(ctx))
	require.NoError(t, tel.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(2.5).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestDeliveryMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewDeliveryMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.ClaimAttempted(ctx, "won")
	m.ClaimAttempted(ctx, "already_claimed")
	m.ClaimAttempted(ctx, "already_claimed")
	m.Transitioned(ctx, delivery.StatusOpen, delivery.StatusClaimed)
	m.Swept(ctx, "expire_uploads", 4, nil)
	m.Swept(ctx, "expire_uploads", 0, errors.New("boom"))

	data := collect(t, reader)

	assert.Equal(t, int64(1), sumFor(t, data["delivery.claim.attempts"], AttrOutcome.String("won")))
	assert.Equal(t, int64(2), sumFor(t, data["delivery.claim.attempts"], AttrOutcome.String("already_claimed")))
	assert.Equal(t, int64(1), sumFor(t, data["delivery.transitions"],
		AttrFrom.String(string(delivery.StatusOpen)), AttrTo.String(string(delivery.StatusClaimed))))
	assert.Equal(t, int64(4), sumFor(t, data["retention.items"], AttrJob.String("expire_uploads")))
	assert.Equal(t, int64(1), sumFor(t, data["retention.runs"],
		AttrJob.String("expire_uploads"), AttrResult.String("ok")))
	assert.Equal(t, int64(1), sumFor(t, data["retention.runs"],
		AttrJob.String("expire_uploads"), AttrResult.String("error")))
}

func TestStartServiceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartServiceSpan(context.Background(), "claims", "Claim", attribute.String("request.status", "open"))
	EndSpan(span, nil)
	_, span = StartServiceSpan(context.Background(), "claims", "Cancel")
	EndSpan(span, errors.New("not allowed"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "claims.Claim", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("request.status", "open"))
	assert.Equal(t, "claims.Cancel", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Len(t, ended[1].Events(), 1)
}
