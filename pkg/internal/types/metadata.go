package types

import (
	"maps"
	"time"
)

// Metadata 对象的可替换元数据，nil 表示对象上未设置该字段.
type Metadata struct {
	CacheControl       *string           `json:"CacheControl,omitempty"`
	ContentDisposition *string           `json:"ContentDisposition,omitempty"`
	ContentEncoding    *string           `json:"ContentEncoding,omitempty"`
	ContentLanguage    *string           `json:"ContentLanguage,omitempty"`
	ContentType        *string           `json:"ContentType,omitempty"`
	UserMetadata       map[string]string `json:"Metadata,omitempty"`
}

// Clone 深拷贝元数据.
func (m Metadata) Clone() Metadata {
	out := m
	out.CacheControl = cloneString(m.CacheControl)
	out.ContentDisposition = cloneString(m.ContentDisposition)
	out.ContentEncoding = cloneString(m.ContentEncoding)
	out.ContentLanguage = cloneString(m.ContentLanguage)
	out.ContentType = cloneString(m.ContentType)
	out.UserMetadata = maps.Clone(m.UserMetadata)

	return out
}

// HasUserMetadata 是否设置了用户元数据，空 map 视为未设置.
func (m Metadata) HasUserMetadata() bool {
	return len(m.UserMetadata) > 0
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

// ObjectDescriptor 列举得到的对象及其当前元数据.
type ObjectDescriptor struct {
	Key string `json:"Key"`
	Metadata
}

// UpdateRequest 一次批量更新的参数.
type UpdateRequest struct {
	UpdateContentType  bool    // 根据扩展名推断 Content-Type/Content-Encoding
	UpdateCacheControl *string // 覆盖 Cache-Control
	DryRun             bool    // 只报告，不发起复制请求
	Debug              bool    // 在结果中附带完整的候选元数据
}

// Action 单个对象的处理结果.
type Action int

const (
	ActionUnchanged Action = iota
	ActionUpdated
	ActionWouldUpdate
)

// String 实现 fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionUpdated:
		return "updated"
	case ActionWouldUpdate:
		return "would_update"
	default:
		return "unknown"
	}
}

// MarshalText 让 JSON 输出使用可读名称.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Outcome 单个对象的处理结果，用于输出与统计.
type Outcome struct {
	Key       string    `json:"key"`
	Action    Action    `json:"action"`
	Before    Metadata  `json:"before"`
	After     Metadata  `json:"after"`
	Candidate *Metadata `json:"candidate,omitempty"` // 仅 debug 模式
	Err       error     `json:"-"`
}

// NeedsUpdate 是否需要（或已经）改写元数据.
func (o *Outcome) NeedsUpdate() bool {
	return o.Action != ActionUnchanged
}

// RunSummary 一次运行的汇总.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Bucket      string        `json:"bucket"`
	Prefix      string        `json:"prefix"`
	DryRun      bool          `json:"dry_run"`
	Total       int           `json:"total"`
	Unchanged   int           `json:"unchanged"`
	Updated     int           `json:"updated"`
	WouldUpdate int           `json:"would_update"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Record 按结果累加计数.
func (s *RunSummary) Record(o *Outcome) {
	s.Total++

	if o.Err != nil {
		s.Failed++
		return
	}

	switch o.Action {
	case ActionUnchanged:
		s.Unchanged++
	case ActionUpdated:
		s.Updated++
	case ActionWouldUpdate:
		s.WouldUpdate++
	}
}
