// Copyright 2025 James Ross
package obs

import (
	"context"
	"testing"

	"github.com/reelvault/mediaserver/internal/config"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMaybeInitTracingDisabled(t *testing.T) {
	cfg := &config.Config{
		Observability: config.Observability{
			Tracing: config.TracingConfig{Enabled: false},
		},
	}
	tp, err := MaybeInitTracing(cfg)
	require.NoError(t, err)
	require.Nil(t, tp)
}

func TestMaybeInitTracingEnabledWithoutEndpoint(t *testing.T) {
	cfg := &config.Config{
		Observability: config.Observability{
			Tracing: config.TracingConfig{Enabled: true},
		},
	}
	tp, err := MaybeInitTracing(cfg)
	require.NoError(t, err)
	require.Nil(t, tp)
}

func TestMaybeInitTracingEnabledWithEndpoint(t *testing.T) {
	otel.SetTracerProvider(trace.NewNoopTracerProvider())

	cfg := &config.Config{
		Observability: config.Observability{
			Tracing: config.TracingConfig{
				Enabled:      true,
				Endpoint:     "http://localhost:4318/v1/traces",
				Environment:  "test",
				SamplingRate: 1.0,
			},
		},
	}
	tp, err := MaybeInitTracing(cfg)
	require.NoError(t, err)
	require.NotNil(t, tp)
	defer tp.Shutdown(context.Background())

	globalTP := otel.GetTracerProvider()
	_, ok := globalTP.(*sdktrace.TracerProvider)
	require.True(t, ok, "expected SDK tracer provider, got %T", globalTP)

	prop := otel.GetTextMapPropagator()
	_, ok = prop.(propagation.CompositeTextMapPropagator)
	require.True(t, ok, "expected composite propagator, got %T", prop)
}

func TestContextWithJobSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	_, span := ContextWithJobSpan(context.Background(), "job-123", "folder_scan", "corr-1")
	require.NotNil(t, span)
	require.True(t, span.IsRecording())
	span.End()
	require.True(t, span.SpanContext().IsValid())
}

func TestStartEnqueueSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	_, span := StartEnqueueSpan(context.Background(), "folder_scan", "lib-1")
	require.NotNil(t, span)
	require.True(t, span.IsRecording())
	span.End()
	require.True(t, span.SpanContext().IsValid())
}

func TestStartDequeueSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	_, span := StartDequeueSpan(context.Background(), "folder_scan")
	require.NotNil(t, span)
	require.True(t, span.IsRecording())
	span.End()
	require.True(t, span.SpanContext().IsValid())
}

func TestRecordError(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	RecordError(ctx, &testError{message: "boom"})
	RecordError(ctx, nil)
	RecordError(context.Background(), &testError{message: "no span"})
}

func TestSetSpanSuccess(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	SetSpanSuccess(ctx)
	SetSpanSuccess(context.Background())
}

func TestAddEvent(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	AddEvent(ctx, "test-event", attribute.String("key1", "value1"), attribute.Int("key2", 42))
	AddEvent(ctx, "simple-event")
	AddEvent(context.Background(), "no-span-event")
}

func TestAddSpanAttributes(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	AddSpanAttributes(ctx,
		attribute.String("attr1", "value1"),
		attribute.Int("attr2", 123),
		attribute.Bool("attr3", true),
	)
	AddSpanAttributes(context.Background(), attribute.String("no-span", "value"))
}

func TestTracerShutdown(t *testing.T) {
	require.NoError(t, TracerShutdown(context.Background(), nil))

	tp := sdktrace.NewTracerProvider()
	require.NoError(t, TracerShutdown(context.Background(), tp))
}

func TestKeyValue(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected attribute.Type
	}{
		{"string", "value", attribute.STRING},
		{"int", 42, attribute.INT64},
		{"int64", int64(42), attribute.INT64},
		{"float64", 3.14, attribute.FLOAT64},
		{"bool", true, attribute.BOOL},
		{"other", struct{}{}, attribute.STRING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := KeyValue("key", tt.value)
			require.Equal(t, attribute.Key("key"), kv.Key)
			require.Equal(t, tt.expected, kv.Value.Type())
		})
	}
}

func TestMaybeInitTracingSamplingRateDefaultsWhenUnset(t *testing.T) {
	otel.SetTracerProvider(trace.NewNoopTracerProvider())

	cfg := &config.Config{
		Observability: config.Observability{
			Tracing: config.TracingConfig{
				Enabled:  true,
				Endpoint: "http://localhost:4318/v1/traces",
			},
		},
	}
	tp, err := MaybeInitTracing(cfg)
	require.NoError(t, err)
	require.NotNil(t, tp)
	defer tp.Shutdown(context.Background())
}

type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}

func BenchmarkStartEnqueueSpan(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, span := StartEnqueueSpan(ctx, "folder_scan", "lib-1")
		span.End()
	}
}
