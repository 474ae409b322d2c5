// Package rule 提供结构体和字段验证功能的封装，基于 go-playground/validator 实现.
package rule

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// BucketNameTag 存储桶名称校验规则.
const BucketNameTag = "bucket_name"

// bucketNameRegexp 宽松的存储桶名称规则，兼容历史上允许大写和下划线的旧式桶名.
var bucketNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{1,255}$`)

var (
	inst *validator.Validate
	once sync.Once
)

// initValidator 新建 validator 并注册 tag name 与内置的自定义规则.
func initValidator() {
	inst = validator.New(validator.WithRequiredStructEnabled())
	inst.SetTagName("rule")

	_ = inst.RegisterValidation(BucketNameTag, func(fl validator.FieldLevel) bool {
		return bucketNameRegexp.MatchString(fl.Field().String())
	})
}

// lazyInit 初始化全局 validator（幂等）.
func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate，若未初始化则先初始化.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 代理 RegisterValidation，确保已初始化.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidateStruct 对结构体执行完整校验，返回原始 error.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 按规则对单个变量校验，例如: ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// ValidateBucketName 校验存储桶名称.
func ValidateBucketName(name string) error {
	return ValidateVar(name, "required,"+BucketNameTag)
}

// RegisterAlias 包装 RegisterAlias，便于注册别名规则.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}
