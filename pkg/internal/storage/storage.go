// Package storage 定义对象存储后端接口，并按名称注册具体实现（minio、aws）.
//
// Example:
//
//	import _ "github.com/yeisme/s3meta/pkg/internal/storage/s3"
//
//	store, err := storage.New(ctx, &configs.GetConfig().S3)
//	if err != nil {
//		// 处理错误
//	}
//	defer store.Close()
//
//	for obj, err := range store.Objects(ctx, "assets", "images/") {
//		...
//	}
package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/s3meta/pkg/configs"
	"github.com/yeisme/s3meta/pkg/internal/types"
	"github.com/yeisme/s3meta/pkg/rule"
)

// BackendTag 校验后端名称是否已注册，用于 configs.S3Config.Backend.
const BackendTag = "s3_backend"

func init() {
	_ = rule.RegisterValidation(BackendTag, func(fl validator.FieldLevel) bool {
		factoriesMu.RLock()
		defer factoriesMu.RUnlock()

		_, ok := factories[fl.Field().String()]

		return ok
	})
}

// ErrBucketNotFound 存储桶不存在.
var ErrBucketNotFound = errors.New("bucket not found")

// ObjectStore 元数据批量更新所需的对象存储能力.
type ObjectStore interface {
	// BucketExists 检查存储桶是否存在，同时用于验证凭证.
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// Objects 递归列举 prefix 下的所有对象并附带当前元数据.
	// 单个对象读取元数据失败时产出 *ObjectError，列举本身失败时产出其它错误并结束.
	Objects(ctx context.Context, bucket, prefix string) iter.Seq2[types.ObjectDescriptor, error]
	// ReplaceMetadata 原地复制对象并以 REPLACE 指令整体替换元数据，不改变对象内容.
	ReplaceMetadata(ctx context.Context, bucket, key string, md types.Metadata) error
	// Close 释放客户端资源.
	Close() error
}

// ObjectError 单个对象上的操作失败，不影响其它对象的处理.
type ObjectError struct {
	Op   string // head / copy
	Key  string
	Code string // 存储服务返回的错误码，可能为空
	Err  error
}

func (e *ObjectError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Key, e.Code, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// Op 名称.
const (
	OpHead = "head"
	OpCopy = "copy"
	OpList = "list"
)

// Factory 根据配置创建 ObjectStore.
type Factory func(ctx context.Context, cfg *configs.S3Config) (ObjectStore, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterBackend 注册后端工厂函数.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[name] = factory
}

// GetRegisteredBackends 返回已注册的后端名称（有序）.
func GetRegisteredBackends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	return slices.Sorted(maps.Keys(factories))
}

// New 按 cfg.Backend 创建 ObjectStore.
func New(ctx context.Context, cfg *configs.S3Config) (ObjectStore, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %q (registered: %v)", cfg.Backend, GetRegisteredBackends())
	}

	return factory(ctx, cfg)
}

// NormalizeString 空字符串视为未设置.
func NormalizeString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// NormalizeStringPtr 空字符串指针视为未设置.
func NormalizeStringPtr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}

// NormalizeUserMetadata 空 map 视为未设置.
func NormalizeUserMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}

	return maps.Clone(m)
}
