package configs

import "github.com/spf13/viper"

const (
	// 默认速率限制配置，RPS 为 0 表示不限速.
	DefaultRateLimitRPS   = 0.0
	DefaultRateLimitBurst = 1
)

// RateLimitConfig 存储请求限速配置，限制对 HEAD/COPY 请求的发起速率.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"   rule:"gte=0"` // 每秒允许的请求数
	Burst int     `mapstructure:"burst" rule:"gte=1"` // 突发容量
}

// Enabled 是否启用限速.
func (c *RateLimitConfig) Enabled() bool {
	return c.RPS > 0
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
}
