package cmd

import (
	"bytes"
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/s3meta/pkg/configs"
	"github.com/yeisme/s3meta/pkg/internal/storage"
	"github.com/yeisme/s3meta/pkg/internal/types"
)

// memoryBackend 测试用后端名.
const memoryBackend = "memory"

// memoryStore 内存中的存储桶 "assets"，记录元数据替换请求.
type memoryStore struct {
	objects []types.ObjectDescriptor
	copies  map[string]types.Metadata
	bucket  string
	prefix  string
}

func (m *memoryStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	return bucket == "assets" || bucket == "mime", nil
}

func (m *memoryStore) Objects(_ context.Context, bucket, prefix string) iter.Seq2[types.ObjectDescriptor, error] {
	m.bucket, m.prefix = bucket, prefix

	return func(yield func(types.ObjectDescriptor, error) bool) {
		for _, obj := range m.objects {
			if !yield(obj, nil) {
				return
			}
		}
	}
}

func (m *memoryStore) ReplaceMetadata(_ context.Context, _, key string, md types.Metadata) error {
	m.copies[key] = md
	return nil
}

func (m *memoryStore) Close() error { return nil }

// lastStore 最近一次运行创建的 memoryStore.
var lastStore *memoryStore

func init() {
	storage.RegisterBackend(memoryBackend, func(context.Context, *configs.S3Config) (storage.ObjectStore, error) {
		cc, ct := "max-age=60", "text/plain"

		lastStore = &memoryStore{
			objects: []types.ObjectDescriptor{
				{Key: "site/logo.png"},
				{Key: "site/readme.txt", Metadata: types.Metadata{CacheControl: &cc, ContentType: &ct}},
			},
			copies: make(map[string]types.Metadata),
		}

		return lastStore, nil
	})
}

// execute 以给定参数运行根命令，并在结束后重置所有参数.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Cleanup(func() {
		reset := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}

		rootCmd.PersistentFlags().VisitAll(reset)

		for _, c := range append(rootCmd.Commands(), rootCmd) {
			c.Flags().VisitAll(reset)
		}
	})

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := Execute(context.Background())

	return out.String(), err
}

func TestMimeCommand(t *testing.T) {
	out, err := execute(t, "mime", "images/logo.png", "dist/app.js.gz", "a.unknownext")
	require.NoError(t, err)

	assert.Regexp(t, `images/logo.png\s+image/png\s+None`, out)
	assert.Regexp(t, `dist/app.js.gz\s+application/javascript\s+gzip`, out)
	assert.Regexp(t, `a.unknownext\s+application/octet-stream\s+None`, out)
}

func TestMimeCommandRequiresKey(t *testing.T) {
	_, err := execute(t, "mime")
	require.Error(t, err)
}

func TestBackendsCommand(t *testing.T) {
	out, err := execute(t, "backends", "--backend", "minio")
	require.NoError(t, err)

	assert.Contains(t, out, "* minio")
	assert.Contains(t, out, "  aws")
}

func TestRootRequiresBucket(t *testing.T) {
	_, err := execute(t)
	require.Error(t, err)

	_, err = execute(t, "a", "b", "c")
	require.Error(t, err)
}

func TestRootRejectsInvalidBackend(t *testing.T) {
	_, err := execute(t, "assets", "--backend", "gcs")
	require.ErrorContains(t, err, "invalid config")
}

func TestRootRejectsInvalidBucketName(t *testing.T) {
	_, err := execute(t, "bad/name", "--backend", "aws", "--endpoint", "http://127.0.0.1:1")
	require.ErrorContains(t, err, "invalid bucket name")
}

func TestRootRejectsUnknownOutput(t *testing.T) {
	_, err := execute(t, "assets", "--backend", "aws", "--endpoint", "http://127.0.0.1:1", "-o", "yaml")
	require.ErrorContains(t, err, "unsupported output format")
}

func TestConfigFileAndEnvFile(t *testing.T) {
	dir := t.TempDir()

	cfgFile := filepath.Join(dir, "s3meta.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("s3:\n  backend: minio\n  region: eu-west-1\n"), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("S3META_S3_ENDPOINT=localhost:9000\n"), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv("S3META_S3_ENDPOINT") })

	out, err := execute(t, "config", "path", "-c", dir, "--env-file", envPath)
	require.NoError(t, err)
	assert.Contains(t, out, cfgFile)

	cfg := configs.GetConfig().S3
	assert.Equal(t, "minio", cfg.Backend)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "localhost:9000", cfg.Endpoint)
}

func TestFlagsOverrideConfig(t *testing.T) {
	_, err := execute(t, "config", "debug", "--backend", "minio", "--region", "ap-east-1", "--path-style", "--debug")
	require.NoError(t, err)

	cfg := configs.GetConfig()
	assert.Equal(t, "minio", cfg.S3.Backend)
	assert.Equal(t, "ap-east-1", cfg.S3.Region)
	assert.True(t, cfg.S3.PathStyle)
	assert.True(t, cfg.Log.Debug)

	_, err = execute(t, "config", "debug", "--debug", "--no-debug")
	require.NoError(t, err)
	assert.False(t, configs.GetConfig().Log.Debug)
}

func TestConfigDebugMasksSecrets(t *testing.T) {
	t.Setenv("S3META_S3_SECRET_ACCESS_KEY", "topsecret")

	out, err := execute(t, "config", "debug")
	require.NoError(t, err)

	assert.NotContains(t, out, "topsecret")
	assert.Contains(t, out, masked)
}

func TestPushConfig(t *testing.T) {
	base := configs.MetricsConfig{Labels: map[string]string{"env": "prod"}}

	cfg := pushConfig(base, "assets")
	assert.Equal(t, map[string]string{"env": "prod", "bucket": "assets"}, cfg.Labels)
	assert.NotContains(t, base.Labels, "bucket")

	assert.Equal(t, map[string]string{"bucket": "assets"}, pushConfig(configs.MetricsConfig{}, "assets").Labels)
}

func TestBackendsRegistered(t *testing.T) {
	assert.Subset(t, storage.GetRegisteredBackends(), []string{"aws", "minio"})
}

func TestRootDryRunDebug(t *testing.T) {
	out, err := execute(t, "assets", "site/", "--backend", memoryBackend,
		"--update-content-type", "--update-cache-control", "max-age=60", "--dry-run", "--debug")
	require.NoError(t, err)

	assert.Equal(t, "assets", lastStore.bucket)
	assert.Equal(t, "site/", lastStore.prefix)
	assert.Empty(t, lastStore.copies)

	assert.Contains(t, out, "site/logo.png Cache-Control: None, Content-Type: None\n")
	assert.Contains(t, out, "site/logo.png Cache-Control: max-age=60, Content-Type: image/png (dry-run)\n")
	assert.Contains(t, out, "site/readme.txt Cache-Control: max-age=60, Content-Type: text/plain\n")
	assert.NotContains(t, out, "site/readme.txt Cache-Control: max-age=60, Content-Type: text/plain (dry-run)")
	assert.Contains(t, out, `"ContentType": "image/png"`)
	assert.Contains(t, out, "2 objects: 0 updated, 1 would update, 1 unchanged, 0 failed")
}

func TestRootUpdates(t *testing.T) {
	out, err := execute(t, "assets", "--backend", memoryBackend, "--update-content-type")
	require.NoError(t, err)

	assert.Empty(t, lastStore.prefix)
	require.Len(t, lastStore.copies, 1)

	md := lastStore.copies["site/logo.png"]
	require.NotNil(t, md.ContentType)
	assert.Equal(t, "image/png", *md.ContentType)
	assert.Nil(t, md.CacheControl)

	assert.NotContains(t, out, `"ContentType":`)
	assert.Contains(t, out, "2 objects: 1 updated, 0 would update, 1 unchanged, 0 failed")
}

func TestRootEmptyCacheControlIsUnset(t *testing.T) {
	out, err := execute(t, "assets", "--backend", memoryBackend, "--update-cache-control", "")
	require.NoError(t, err)

	assert.Empty(t, lastStore.copies)
	assert.Contains(t, out, "2 objects: 0 updated, 0 would update, 2 unchanged, 0 failed")
}

func TestRootNoDebugWins(t *testing.T) {
	out, err := execute(t, "assets", "--backend", memoryBackend,
		"--update-content-type", "--dry-run", "--debug", "--no-debug")
	require.NoError(t, err)

	assert.False(t, configs.GetConfig().Log.Debug)
	assert.NotContains(t, out, `"ContentType":`)
	assert.Contains(t, out, "(dry-run)")
}

func TestRootBucketNamedLikeSubcommand(t *testing.T) {
	out, err := execute(t, "--backend", memoryBackend, "--dry-run", "--update-content-type", "--", "mime")
	require.NoError(t, err)

	assert.Equal(t, "mime", lastStore.bucket)
	assert.Contains(t, out, "1 would update")
}
