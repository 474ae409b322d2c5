// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集一次运行中对象处理结果与存储请求耗时，运行结束时可推送到 Pushgateway.
//
// Example:
//
//	import "github.com/yeisme/s3meta/pkg/metrics"
//
//	metrics.InitMetrics(config.Metrics)
//
//	// 记录指标
//	metrics.ObjectsTotal.WithLabelValues("updated").Inc()
//	metrics.RequestDuration.WithLabelValues("copy").Observe(0.1)
//
//	// 运行结束后推送
//	_ = metrics.Push(ctx, config.Metrics)
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/yeisme/s3meta/pkg/configs"
)

const namespace = "s3meta"

// 全局指标变量.
var (
	// ObjectsTotal 按处理结果统计的对象数.
	ObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_total",
			Help:      "Total number of objects processed, by action",
		},
		[]string{"action"},
	)

	// ObjectErrors 按操作统计的单对象失败数.
	ObjectErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_errors_total",
			Help:      "Total number of per-object storage errors, by operation",
		},
		[]string{"op"},
	)

	// RequestDuration 存储请求耗时.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_request_duration_seconds",
			Help:      "Storage request duration in seconds, by operation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// LastRunTimestamp 最近一次运行完成时间.
	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last reconciliation run finished",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	registerOnce sync.Once
)

// InitMetrics 注册指标，可重复调用.
func InitMetrics(config configs.MetricsConfig) {
	registerOnce.Do(func() {
		registry.MustRegister(ObjectsTotal, ObjectErrors, RequestDuration, LastRunTimestamp)

		// 注册标准收集器
		if config.RuntimeMetrics {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
	})
}

// Push 将注册表中的指标推送到 Pushgateway；未启用或未配置地址时不做任何事.
func Push(ctx context.Context, config configs.MetricsConfig) error {
	if !config.Enabled || config.Pushgateway == "" {
		return nil
	}

	pusher := push.New(config.Pushgateway, config.Job).Gatherer(registry)
	for k, v := range config.Labels {
		pusher = pusher.Grouping(k, v)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", config.Pushgateway, err)
	}

	return nil
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
