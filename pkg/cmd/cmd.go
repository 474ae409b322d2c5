// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yeisme/s3meta/pkg/configs"
	ctxPkg "github.com/yeisme/s3meta/pkg/context"
	"github.com/yeisme/s3meta/pkg/internal/service"
	"github.com/yeisme/s3meta/pkg/internal/storage"
	"github.com/yeisme/s3meta/pkg/internal/types"
	"github.com/yeisme/s3meta/pkg/log"
	"github.com/yeisme/s3meta/pkg/metrics"
	"github.com/yeisme/s3meta/pkg/rule"
	"github.com/yeisme/s3meta/pkg/tracing"

	// 注册对象存储后端
	_ "github.com/yeisme/s3meta/pkg/internal/storage/awss3"
	_ "github.com/yeisme/s3meta/pkg/internal/storage/s3"
)

// shutdownTimeout 运行结束后推送指标与关闭追踪的超时时间.
const shutdownTimeout = 10 * time.Second

var (
	configPath string
	envFile    string
	debug      bool
	noDebug    bool

	updateContentType  bool
	updateCacheControl string
	dryRun             bool
	output             string

	rootCmd = &cobra.Command{
		Use:   "s3meta BUCKET [PREFIX]",
		Short: "Update Content-Type and Cache-Control metadata of S3 objects in bulk",
		Long: `s3meta walks every object under PREFIX in BUCKET and rewrites its metadata in place
when it differs from the requested values. Content-Type and Content-Encoding are guessed
from the object key, Cache-Control is set to the given value.

A bucket named like a subcommand (mime, config, backends) is passed after "--":
  s3meta --update-content-type -- mime`,
		Example: `  s3meta assets --update-content-type
  s3meta assets site/ --update-cache-control 'max-age=86400' --dry-run
  s3meta assets --backend minio --endpoint localhost:9000 --path-style -o json`,
		Version:      configs.AppVersion,
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.RunE = runReconcile

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file or directory (default: ./s3meta.yaml, ./configs/s3meta.yaml)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file loaded before the config")
	pf.BoolVar(&debug, "debug", false, "verbose logging and print the full candidate metadata of every object")
	pf.BoolVar(&noDebug, "no-debug", false, "disable debug output")
	pf.String("backend", configs.DefaultS3Backend, "storage backend (list them with: s3meta backends)")
	pf.String("endpoint", "", "S3 endpoint, e.g. localhost:9000 or https://s3.example.com")
	pf.String("region", configs.DefaultS3Region, "S3 region")
	pf.String("profile", "", "shared credentials profile")
	pf.Bool("path-style", false, "use path-style bucket addressing")

	f := rootCmd.Flags()
	f.BoolVar(&updateContentType, "update-content-type", false, "guess Content-Type and Content-Encoding from the object key")
	f.StringVar(&updateCacheControl, "update-cache-control", "", "set Cache-Control, e.g. 'max-age=86400'")
	f.BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	f.StringVarP(&output, "output", "o", service.OutputText, "report format: text or json")

	registerConfigsCommands()
	registerBackendsCommands()
	registerMimeCommands()
}

// bindFlags 将命令行参数绑定到配置键，命令行优先于配置文件与环境变量.
func bindFlags(v *viper.Viper) error {
	pf := rootCmd.PersistentFlags()

	for key, name := range map[string]string{
		"s3.backend":    "backend",
		"s3.endpoint":   "endpoint",
		"s3.region":     "region",
		"s3.profile":    "profile",
		"s3.path_style": "path-style",
	} {
		if err := v.BindPFlag(key, pf.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	// --no-debug 优先
	if pf.Changed("debug") || pf.Changed("no-debug") {
		v.Set("log.debug", debug && !noDebug)
	}

	return nil
}

// setup 加载 dotenv、配置并初始化日志.
func setup(_ *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	if err := configs.InitConfig(configPath, bindFlags); err != nil {
		return err
	}

	if err := rule.ValidateStruct(configs.GetConfig()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Init()

	return nil
}

// runReconcile 根命令：遍历存储桶并更新元数据.
func runReconcile(cmd *cobra.Command, args []string) error {
	bucket, prefix := args[0], ""
	if len(args) > 1 {
		prefix = args[1]
	}

	cfg := configs.GetConfig()
	ctx := cmd.Context()
	logger := log.Logger()

	metrics.InitMetrics(cfg.Metrics)

	if err := tracing.InitTracer(ctx, cfg.Tracing); err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to shutdown tracer")
		}
	}()

	store, err := storage.New(ctx, &cfg.S3)
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	ctx = ctxPkg.WithObjectStore(ctx, store)

	reporter, err := service.NewReporter(output, cmd.OutOrStdout(), !color.NoColor)
	if err != nil {
		return err
	}

	reconciler, err := service.NewReconcilerFromContext(ctx,
		service.WithReporter(reporter),
		service.WithRateLimit(cfg.RateLimit),
		service.WithLogger(*logger),
	)
	if err != nil {
		return err
	}

	req := types.UpdateRequest{
		UpdateContentType: updateContentType,
		DryRun:            dryRun,
		Debug:             cfg.Log.Debug,
	}

	// 空字符串与未指定等价
	if updateCacheControl != "" {
		req.UpdateCacheControl = &updateCacheControl
	}

	_, runErr := reconciler.Run(ctx, bucket, prefix, req)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := metrics.Push(pushCtx, pushConfig(cfg.Metrics, bucket)); err != nil {
		logger.Warn().Err(err).Msg("failed to push metrics")
	}

	return runErr
}

// pushConfig 推送时附加 bucket 分组标签.
func pushConfig(cfg configs.MetricsConfig, bucket string) configs.MetricsConfig {
	labels := maps.Clone(cfg.Labels)
	if labels == nil {
		labels = make(map[string]string, 1)
	}

	labels["bucket"] = bucket
	cfg.Labels = labels

	return cfg
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
