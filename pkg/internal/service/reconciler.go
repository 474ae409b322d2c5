package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yeisme/s3meta/pkg/configs"
	ctxPkg "github.com/yeisme/s3meta/pkg/context"
	"github.com/yeisme/s3meta/pkg/internal/storage"
	"github.com/yeisme/s3meta/pkg/internal/types"
	nlog "github.com/yeisme/s3meta/pkg/log"
	"github.com/yeisme/s3meta/pkg/metrics"
	"github.com/yeisme/s3meta/pkg/rule"
	"github.com/yeisme/s3meta/pkg/tracing"
)

// failedLabel 失败对象在 objects_total 中的 action 标签.
const failedLabel = "failed"

// Reconciler 逐个对象计算候选元数据并在需要时原地复制替换元数据.
// 对象按列举顺序串行处理，单个对象失败只记录不中断.
type Reconciler struct {
	store    storage.ObjectStore
	reporter Reporter
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// Option 配置 Reconciler.
type Option func(*Reconciler)

// WithReporter 设置结果输出.
func WithReporter(r Reporter) Option {
	return func(rc *Reconciler) {
		rc.reporter = r
	}
}

// WithRateLimit 限制存储请求速率，RPS 为 0 时不限速.
func WithRateLimit(cfg configs.RateLimitConfig) Option {
	return func(rc *Reconciler) {
		if !cfg.Enabled() {
			rc.limiter = nil
			return
		}

		rc.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1))
	}
}

// WithLogger 设置日志.
func WithLogger(l zerolog.Logger) Option {
	return func(rc *Reconciler) {
		rc.logger = l
	}
}

// NewReconciler 创建 Reconciler.
func NewReconciler(store storage.ObjectStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		reporter: nopReporter{},
		logger:   *nlog.Logger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewReconcilerFromContext 从 context 获取 ObjectStore 并创建 Reconciler.
func NewReconcilerFromContext(ctx context.Context, opts ...Option) (*Reconciler, error) {
	store := ctxPkg.GetObjectStore(ctx)
	if store == nil {
		return nil, errors.New("object store not initialized")
	}

	return NewReconciler(store, opts...), nil
}

// ReconcileObject 处理单个对象. 复制失败时返回的 Outcome 中 Err 同样被设置.
func (r *Reconciler) ReconcileObject(ctx context.Context, bucket string,
	current types.ObjectDescriptor, req types.UpdateRequest) (types.Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.object", trace.WithAttributes(
		attribute.String("s3.bucket", bucket),
		attribute.String("s3.key", current.Key),
	))
	defer span.End()

	candidate := BuildCandidate(current, req)

	outcome := types.Outcome{
		Key:    current.Key,
		Action: types.ActionUnchanged,
		Before: current.Metadata,
		After:  current.Metadata,
	}

	if req.Debug {
		c := candidate.Clone()
		outcome.Candidate = &c
	}

	changed := ChangedFields(current.Metadata, candidate)
	if len(changed) == 0 {
		span.SetAttributes(attribute.String("s3meta.action", outcome.Action.String()))
		return outcome, nil
	}

	outcome.After = candidate
	outcome.Action = types.ActionWouldUpdate

	if !req.DryRun {
		outcome.Action = types.ActionUpdated
	}

	span.SetAttributes(
		attribute.String("s3meta.action", outcome.Action.String()),
		attribute.StringSlice("s3meta.changed", changed),
	)

	r.logger.Debug().Str("key", current.Key).Strs("changed", changed).Bool("dry_run", req.DryRun).Msg("metadata differs")

	if req.DryRun {
		return outcome, nil
	}

	if err := r.wait(ctx); err != nil {
		outcome.Err = err
		return outcome, err
	}

	start := time.Now()
	err := r.store.ReplaceMetadata(ctx, bucket, current.Key, candidate)
	metrics.RequestDuration.WithLabelValues(storage.OpCopy).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace metadata failed")

		outcome.Err = err

		return outcome, err
	}

	return outcome, nil
}

// Run 校验存储桶后遍历 prefix 下的全部对象.
// 存储桶不存在、凭证错误或列举失败时返回错误；单个对象的失败计入汇总并继续.
func (r *Reconciler) Run(ctx context.Context, bucket, prefix string, req types.UpdateRequest) (*types.RunSummary, error) {
	summary := &types.RunSummary{
		RunID:  uuid.NewString(),
		Bucket: bucket,
		Prefix: prefix,
		DryRun: req.DryRun,
	}

	if err := rule.ValidateBucketName(bucket); err != nil {
		return summary, fmt.Errorf("invalid bucket name %q: %w", bucket, err)
	}

	ctx, span := tracing.StartSpan(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("s3.bucket", bucket),
		attribute.String("s3.prefix", prefix),
		attribute.Bool("s3meta.dry_run", req.DryRun),
	))
	defer span.End()

	l := ctxPkg.WithTraceContext(ctx, r.logger).With().
		Str("run_id", summary.RunID).
		Str("bucket", bucket).
		Str("prefix", prefix).
		Logger()

	exists, err := r.store.BucketExists(ctx, bucket)
	if err != nil {
		span.RecordError(err)
		return summary, fmt.Errorf("check bucket %s: %w", bucket, err)
	}

	if !exists {
		return summary, fmt.Errorf("%w: %s", storage.ErrBucketNotFound, bucket)
	}

	l.Info().Bool("dry_run", req.DryRun).Bool("update_content_type", req.UpdateContentType).
		Bool("update_cache_control", req.UpdateCacheControl != nil).Msg("reconcile started")

	start := time.Now()

	err = r.walk(ctx, l, bucket, prefix, req, summary)

	summary.Elapsed = time.Since(start)
	metrics.LastRunTimestamp.SetToCurrentTime()
	r.reporter.Summary(summary)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "walk aborted")
		l.Error().Err(err).Int("processed", summary.Total).Msg("reconcile aborted")

		return summary, err
	}

	l.Info().
		Int("total", summary.Total).
		Int("updated", summary.Updated).
		Int("would_update", summary.WouldUpdate).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("reconcile finished")

	return summary, nil
}

// walk 串行消费对象序列.
func (r *Reconciler) walk(ctx context.Context, l zerolog.Logger, bucket, prefix string,
	req types.UpdateRequest, summary *types.RunSummary) error {
	for obj, err := range r.store.Objects(ctx, bucket, prefix) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			var objErr *storage.ObjectError
			if !errors.As(err, &objErr) {
				return err
			}

			r.record(l, summary, &types.Outcome{Key: objErr.Key, Err: err})

			continue
		}

		outcome, _ := r.ReconcileObject(ctx, bucket, obj, req)
		r.record(l, summary, &outcome)

		// 每消费一个对象对应一次 HEAD 请求
		if err := r.wait(ctx); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// record 输出结果并更新汇总与指标.
func (r *Reconciler) record(l zerolog.Logger, summary *types.RunSummary, o *types.Outcome) {
	summary.Record(o)
	r.reporter.Report(o)

	if o.Err == nil {
		metrics.ObjectsTotal.WithLabelValues(o.Action.String()).Inc()
		return
	}

	metrics.ObjectsTotal.WithLabelValues(failedLabel).Inc()

	evt := l.Error().Err(o.Err).Str("key", o.Key)

	var objErr *storage.ObjectError
	if errors.As(o.Err, &objErr) {
		metrics.ObjectErrors.WithLabelValues(objErr.Op).Inc()
		evt = evt.Str("op", objErr.Op).Str("code", objErr.Code)
	}

	evt.Msg("object skipped")
}

func (r *Reconciler) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}

	return r.limiter.Wait(ctx)
}
