// Package configs 管理应用程序配置，包括对象存储、日志、指标、追踪和限速的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv），配置文件可选，环境变量与命令行参数优先.
//
// Example:
//
//	import "path/to/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.S3.Backend)
//
// Example accessing S3 config:
//
//	config := configs.GetConfig()
//	s3Config := config.S3
//	endpoint := s3Config.GetEndpointURL()
//	fmt.Println("S3 Endpoint:", endpoint)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 S3META_S3_ENDPOINT.
const EnvPrefix = "S3META"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		S3        S3Config        `mapstructure:"s3"`         // S3Config 对象存储配置
		Log       LogConfig       `mapstructure:"log"`        // LogConfig 日志相关配置
		Metrics   MetricsConfig   `mapstructure:"metrics"`    // MetricsConfig 指标配置
		Tracing   TracingConfig   `mapstructure:"tracing"`    // TracingConfig 追踪配置
		RateLimit RateLimitConfig `mapstructure:"rate_limit"` // RateLimitConfig 存储请求限速
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper = viper.New()
)

// Option 在读取配置前调整 Viper，例如绑定命令行参数.
type Option func(v *viper.Viper) error

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv).
// path 可以是文件或目录；为空或找不到配置文件时只使用默认值、环境变量和命令行参数.
// 每次调用都会重建 Viper 实例.
func InitConfig(path string, opts ...Option) error {
	v := viper.New()
	appViper = v
	// 设置默认值
	setAllDefaults(v)

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return err
		}
	}

	explicit := false

	// 检查path是否是文件
	if info, err := os.Stat(path); path != "" && err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		v.SetConfigFile(path)

		explicit = true
	} else {
		if path == "" {
			path = "."
		}

		// 是目录，设置配置名和路径
		v.SetConfigName("s3meta")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "s3meta."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置，目录模式下允许没有配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 解析到全局配置
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = cfg

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var s3Config S3Config

	var logConfig LogConfig

	var metricsConfig MetricsConfig

	var tracingConfig TracingConfig

	var rateLimitConfig RateLimitConfig

	s3Config.setDefaults(v)
	logConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	tracingConfig.setDefaults(v)
	rateLimitConfig.setDefaults(v)
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

// GetViper 返回全局 Viper 实例，命令行参数通过它绑定到配置键.
func GetViper() *viper.Viper {
	return appViper
}
