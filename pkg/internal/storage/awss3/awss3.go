// Package awss3 基于 aws-sdk-go-v2 实现 storage.ObjectStore，凭证走 AWS 默认凭证链
// （环境变量、共享配置 profile、SSO、IMDS 等）.
package awss3

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yeisme/s3meta/pkg/configs"
	"github.com/yeisme/s3meta/pkg/internal/storage"
	"github.com/yeisme/s3meta/pkg/internal/types"
	nlog "github.com/yeisme/s3meta/pkg/log"
)

// BackendName 注册名.
const BackendName = "aws"

func init() {
	storage.RegisterBackend(BackendName, func(ctx context.Context, cfg *configs.S3Config) (storage.ObjectStore, error) {
		return New(ctx, cfg)
	})
}

// API S3 客户端中用到的方法，便于测试替换.
type API interface {
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// Client 包装 S3 API.
type Client struct {
	api API
}

// New 通过 LoadDefaultConfig 创建 S3 客户端.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.HasStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := cfg.GetEndpointURL()

	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}

		o.UsePathStyle = cfg.PathStyle
	})

	nlog.Logger().Debug().Str("region", awsCfg.Region).Str("endpoint", endpoint).Msg("aws s3 client created")

	return NewWithAPI(cli), nil
}

// NewWithAPI 使用已有的 API 实现创建 Client.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// BucketExists 通过 HeadBucket 检查存储桶.
func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) || errorCode(err) == "NoSuchBucket" {
		return false, nil
	}

	return false, fmt.Errorf("check bucket %s: %w", bucket, err)
}

// Objects 分页列举（不使用 delimiter），并对每个对象 HeadObject 获取元数据.
func (c *Client) Objects(ctx context.Context, bucket, prefix string) iter.Seq2[types.ObjectDescriptor, error] {
	return func(yield func(types.ObjectDescriptor, error) bool) {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}

		paginator := s3.NewListObjectsV2Paginator(c.api, input)

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				if errorCode(err) == "NoSuchBucket" {
					err = errors.Join(storage.ErrBucketNotFound, err)
				}

				yield(types.ObjectDescriptor{}, fmt.Errorf("list objects in %s: %w", bucket, err))

				return
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)

				out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: aws.String(bucket),
					Key:    aws.String(key),
				})
				if err != nil {
					objErr := &storage.ObjectError{Op: storage.OpHead, Key: key, Code: errorCode(err), Err: err}
					if !yield(types.ObjectDescriptor{Key: key}, objErr) {
						return
					}

					continue
				}

				if !yield(DescriptorFromHead(key, out), nil) {
					return
				}
			}
		}
	}
}

// ReplaceMetadata 原地复制对象，MetadataDirective=REPLACE.
func (c *Client) ReplaceMetadata(ctx context.Context, bucket, key string, md types.Metadata) error {
	if _, err := c.api.CopyObject(ctx, CopyInput(bucket, key, md)); err != nil {
		return &storage.ObjectError{Op: storage.OpCopy, Key: key, Code: errorCode(err), Err: err}
	}

	return nil
}

// Close 无需释放资源.
func (c *Client) Close() error {
	return nil
}

// DescriptorFromHead 把 HeadObject 的结果转换为对象描述.
func DescriptorFromHead(key string, out *s3.HeadObjectOutput) types.ObjectDescriptor {
	return types.ObjectDescriptor{
		Key: key,
		Metadata: types.Metadata{
			CacheControl:       storage.NormalizeStringPtr(out.CacheControl),
			ContentDisposition: storage.NormalizeStringPtr(out.ContentDisposition),
			ContentEncoding:    storage.NormalizeStringPtr(out.ContentEncoding),
			ContentLanguage:    storage.NormalizeStringPtr(out.ContentLanguage),
			ContentType:        storage.NormalizeStringPtr(out.ContentType),
			UserMetadata:       storage.NormalizeUserMetadata(out.Metadata),
		},
	}
}

// CopyInput 构造元数据替换的 CopyObject 请求，只携带已设置的字段.
func CopyInput(bucket, key string, md types.Metadata) *s3.CopyObjectInput {
	return &s3.CopyObjectInput{
		Bucket:             aws.String(bucket),
		Key:                aws.String(key),
		CopySource:         aws.String(url.PathEscape(bucket + "/" + key)),
		MetadataDirective:  s3types.MetadataDirectiveReplace,
		CacheControl:       md.CacheControl,
		ContentDisposition: md.ContentDisposition,
		ContentEncoding:    md.ContentEncoding,
		ContentLanguage:    md.ContentLanguage,
		ContentType:        md.ContentType,
		Metadata:           md.UserMetadata,
	}
}

// errorCode 提取 smithy API 错误码.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}

	return ""
}
