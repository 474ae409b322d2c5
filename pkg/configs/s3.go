package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// S3Config 对象存储配置，backend 决定使用 MinIO 客户端还是 AWS SDK.
type S3Config struct {
	// Backend 已注册的后端名，由 storage.BackendTag 规则校验
	Backend         string `mapstructure:"backend"           rule:"required,s3_backend"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`    // 仅 aws 后端使用，共享配置文件中的 profile
	PathStyle       bool   `mapstructure:"path_style"` // 强制 path-style 寻址
}

const (
	DefaultS3Backend  = "aws"       // 默认后端，使用 AWS 默认凭证链
	DefaultS3Endpoint = ""          // 为空时使用后端的默认端点
	DefaultS3UseSSL   = true        // 默认是否使用SSL
	DefaultS3Region   = "us-east-1" // 默认区域
)

// GetEndpointURL 获取完整的端点URL，未配置端点时返回空字符串.
func (c *S3Config) GetEndpointURL() string {
	if c.Endpoint == "" {
		return ""
	}

	if strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// HasStaticCredentials 是否配置了静态访问密钥.
func (c *S3Config) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.backend", DefaultS3Backend)
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.session_token", "")
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.path_style", false)
}
