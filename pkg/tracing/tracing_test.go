package tracing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/s3meta/pkg/configs"
	"github.com/yeisme/s3meta/pkg/tracing"
)

func TestInitTracerDisabled(t *testing.T) {
	require.NoError(t, tracing.InitTracer(context.Background(), configs.TracingConfig{Enabled: false}))
	require.NoError(t, tracing.ShutdownTracer(context.Background()))

	// 未启用时仍可创建 noop span
	_, span := tracing.StartSpan(context.Background(), "noop")
	span.End()
}

func TestInitTracerUnsupported(t *testing.T) {
	err := tracing.InitTracer(context.Background(), configs.TracingConfig{Enabled: true, ExporterType: "jaeger"})
	assert.ErrorContains(t, err, "unsupported exporter type")
}

func TestInitTracerZipkin(t *testing.T) {
	cfg := configs.TracingConfig{
		Enabled:        true,
		ServiceName:    "s3meta-test",
		ServiceVersion: "test",
		ExporterType:   "zipkin",
		Endpoint:       "http://127.0.0.1:9411/api/v2/spans",
		SampleRate:     1,
		BatchTimeout:   time.Second,
		MaxBatchSize:   configs.DefaultMaxBatchSize,
		MaxQueueSize:   configs.DefaultMaxQueueSize,
	}

	require.NoError(t, tracing.InitTracer(context.Background(), cfg))

	_, span := tracing.StartSpan(context.Background(), "reconcile.object")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// 导出失败不影响关闭流程
	_ = tracing.ShutdownTracer(ctx)
}
