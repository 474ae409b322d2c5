package service

import (
	"maps"

	"github.com/yeisme/s3meta/pkg/internal/mimetypes"
	"github.com/yeisme/s3meta/pkg/internal/types"
)

// metadataField 元数据中的单值字段，按固定顺序统一比较.
type metadataField struct {
	name string
	ref  func(m *types.Metadata) **string
}

// metadataFields 与 S3 CopyObject 参数同名.
var metadataFields = []metadataField{
	{"CacheControl", func(m *types.Metadata) **string { return &m.CacheControl }},
	{"ContentDisposition", func(m *types.Metadata) **string { return &m.ContentDisposition }},
	{"ContentEncoding", func(m *types.Metadata) **string { return &m.ContentEncoding }},
	{"ContentLanguage", func(m *types.Metadata) **string { return &m.ContentLanguage }},
	{"ContentType", func(m *types.Metadata) **string { return &m.ContentType }},
}

// userMetadataField 用户元数据在变更列表中的名称.
const userMetadataField = "Metadata"

// BuildCandidate 以对象当前元数据为基础，按请求覆盖 Cache-Control 和推断的 Content-Type/Content-Encoding.
// 推断不出编码时保留对象原有的 Content-Encoding.
func BuildCandidate(current types.ObjectDescriptor, req types.UpdateRequest) types.Metadata {
	candidate := current.Metadata.Clone()

	if req.UpdateCacheControl != nil {
		cc := *req.UpdateCacheControl
		candidate.CacheControl = &cc
	}

	if req.UpdateContentType {
		typ, enc := mimetypes.Guess(current.Key)
		candidate.ContentType = &typ

		if enc != nil {
			candidate.ContentEncoding = enc
		}
	}

	return candidate
}

// ChangedFields 返回候选值存在且与当前值不同（或当前未设置）的字段名.
// 候选中未设置的字段表示沿用当前值，不会出现在结果中.
func ChangedFields(current, candidate types.Metadata) []string {
	var changed []string

	for _, f := range metadataFields {
		want := *f.ref(&candidate)
		if want == nil {
			continue
		}

		have := *f.ref(&current)
		if have == nil || *have != *want {
			changed = append(changed, f.name)
		}
	}

	if candidate.HasUserMetadata() &&
		(!current.HasUserMetadata() || !maps.Equal(current.UserMetadata, candidate.UserMetadata)) {
		changed = append(changed, userMetadataField)
	}

	return changed
}

// NeedsUpdate 候选元数据是否需要写回对象.
func NeedsUpdate(current, candidate types.Metadata) bool {
	return len(ChangedFields(current, candidate)) > 0
}
