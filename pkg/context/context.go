// Package context 拓展上下文功能，将存储客户端、日志等集成到上下文中，方便在命令与服务之间传递.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/s3meta/pkg/internal/storage"
)

type ContextKey string

const (
	ObjectStoreKey ContextKey = "objectStore"
)

// WithObjectStore 将 ObjectStore 存储到 context 中.
func WithObjectStore(ctx context.Context, store storage.ObjectStore) context.Context {
	return context.WithValue(ctx, ObjectStoreKey, store)
}

// GetObjectStore 从 context 中获取 ObjectStore.
func GetObjectStore(ctx context.Context) storage.ObjectStore { //nolint:ireturn
	if store, ok := ctx.Value(ObjectStoreKey).(storage.ObjectStore); ok {
		return store
	}

	return nil
}

// WithTraceContext 创建带有追踪上下文的logger.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		return logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
