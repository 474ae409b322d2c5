package configs

// AppVersion 应用版本，发布时通过 -ldflags "-X github.com/yeisme/s3meta/pkg/configs.AppVersion=..." 覆盖.
var AppVersion = "0.1.0"
