// Package configs 管理应用程序配置，包括Metrics的配置信息.
// 命令行工具运行结束后可将指标推送到 Prometheus Pushgateway.
//
// Example:
//
//	config := configs.GetConfig()
//	metricsConfig := config.Metrics
//	if metricsConfig.Enabled {
//		// 推送指标
//	}
package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`         // 是否启用Metrics
	Pushgateway    string            `mapstructure:"pushgateway"`     // Pushgateway 地址，为空则不推送
	Job            string            `mapstructure:"job"`             // 推送时使用的 job 名称
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"` // 是否收集运行时指标
	Labels         map[string]string `mapstructure:"labels"`          // 推送时附加的分组标签
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "s3meta")
	v.SetDefault("metrics.runtime_metrics", false)
	v.SetDefault("metrics.labels", map[string]string{})
}
