// Package s3 基于 MinIO 客户端实现 storage.ObjectStore，适用于 MinIO 及其它 S3 兼容服务.
package s3

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/s3meta/pkg/configs"
	"github.com/yeisme/s3meta/pkg/internal/storage"
	"github.com/yeisme/s3meta/pkg/internal/types"
	nlog "github.com/yeisme/s3meta/pkg/log"
)

// BackendName 注册名.
const BackendName = "minio"

// DefaultEndpoint 未配置端点时使用 AWS S3.
const DefaultEndpoint = "s3.amazonaws.com"

// amzMetaPrefix 用户元数据头前缀，显式加上以免与标准头同名时被当作标准头发送.
const amzMetaPrefix = "X-Amz-Meta-"

func init() {
	storage.RegisterBackend(BackendName, func(ctx context.Context, cfg *configs.S3Config) (storage.ObjectStore, error) {
		return New(ctx, cfg)
	})
}

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client
}

// New 初始化 MinIO 客户端. 未配置静态密钥时依次尝试环境变量、共享凭证文件和 IAM.
func New(_ context.Context, cfg *configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL

	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:        newCredentials(cfg),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("s3meta", configs.AppVersion)

	nlog.Logger().Debug().Str("endpoint", endpoint).Bool("secure", secure).Msg("minio client created")

	return &Client{Client: cli}, nil
}

func newCredentials(cfg *configs.S3Config) *credentials.Credentials {
	if cfg.HasStaticCredentials() {
		return credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}

	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
		&credentials.FileAWSCredentials{Profile: cfg.Profile},
		&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
	})
}

// BucketExists 检查存储桶是否存在.
func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := c.Client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", bucket, wrapCode(err))
	}

	return ok, nil
}

// Objects 递归列举对象，并对每个对象 StatObject 获取完整元数据.
func (c *Client) Objects(ctx context.Context, bucket, prefix string) iter.Seq2[types.ObjectDescriptor, error] {
	return func(yield func(types.ObjectDescriptor, error) bool) {
		// 提前退出时取消列举，释放 ListObjects 的 goroutine
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		opts := minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}

		for object := range c.ListObjects(ctx, bucket, opts) {
			if object.Err != nil {
				yield(types.ObjectDescriptor{}, fmt.Errorf("list objects in %s: %w", bucket, wrapCode(object.Err)))
				return
			}

			info, err := c.StatObject(ctx, bucket, object.Key, minio.StatObjectOptions{})
			if err != nil {
				objErr := &storage.ObjectError{Op: storage.OpHead, Key: object.Key, Code: errorCode(err), Err: err}
				if !yield(types.ObjectDescriptor{Key: object.Key}, objErr) {
					return
				}

				continue
			}

			if !yield(DescriptorFromInfo(object.Key, info), nil) {
				return
			}
		}
	}
}

// ReplaceMetadata 原地复制对象，替换全部元数据.
func (c *Client) ReplaceMetadata(ctx context.Context, bucket, key string, md types.Metadata) error {
	dst, src := CopyOptions(bucket, key, md)

	if _, err := c.CopyObject(ctx, dst, src); err != nil {
		return &storage.ObjectError{Op: storage.OpCopy, Key: key, Code: errorCode(err), Err: err}
	}

	return nil
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}

// DescriptorFromInfo 把 StatObject 的结果转换为对象描述，空值视为未设置.
func DescriptorFromInfo(key string, info minio.ObjectInfo) types.ObjectDescriptor {
	h := info.Metadata

	// StatObject 在缺少 Content-Type 头时填充 application/octet-stream，以响应头为准
	contentType := info.ContentType
	if h != nil {
		contentType = h.Get("Content-Type")
	}

	d := types.ObjectDescriptor{
		Key: key,
		Metadata: types.Metadata{
			ContentType:  storage.NormalizeString(contentType),
			UserMetadata: storage.NormalizeUserMetadata(info.UserMetadata),
		},
	}

	if h != nil {
		d.CacheControl = storage.NormalizeString(h.Get("Cache-Control"))
		d.ContentDisposition = storage.NormalizeString(h.Get("Content-Disposition"))
		d.ContentEncoding = storage.NormalizeString(h.Get("Content-Encoding"))
		d.ContentLanguage = storage.NormalizeString(h.Get("Content-Language"))
	}

	return d
}

// CopyOptions 构造原地复制的目标与源参数.
// MinIO 客户端会把标准头（Content-Type 等）与 X-Amz-Meta-* 原样发送，其余键加 X-Amz-Meta- 前缀.
func CopyOptions(bucket, key string, md types.Metadata) (minio.CopyDestOptions, minio.CopySrcOptions) {
	headers := make(map[string]string, len(md.UserMetadata)+5)

	set := func(name string, v *string) {
		if v != nil {
			headers[name] = *v
		}
	}

	set("Cache-Control", md.CacheControl)
	set("Content-Disposition", md.ContentDisposition)
	set("Content-Encoding", md.ContentEncoding)
	set("Content-Language", md.ContentLanguage)
	set("Content-Type", md.ContentType)

	for k, v := range md.UserMetadata {
		headers[amzMetaPrefix+k] = v
	}

	dst := minio.CopyDestOptions{
		Bucket:          bucket,
		Object:          key,
		UserMetadata:    headers,
		ReplaceMetadata: true,
	}
	src := minio.CopySrcOptions{
		Bucket: bucket,
		Object: key,
	}

	return dst, src
}

// errorCode 提取 S3 错误码.
func errorCode(err error) string {
	return minio.ToErrorResponse(err).Code
}

// wrapCode 对 NoSuchBucket 返回 storage.ErrBucketNotFound，便于上层识别.
func wrapCode(err error) error {
	if errorCode(err) == "NoSuchBucket" {
		return errors.Join(storage.ErrBucketNotFound, err)
	}

	return err
}
