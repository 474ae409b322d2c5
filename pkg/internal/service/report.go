package service

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"

	"github.com/yeisme/s3meta/pkg/internal/types"
)

// unset 未设置字段的占位符.
const unset = "None"

// Reporter 输出每个对象的处理结果与最终汇总.
type Reporter interface {
	Report(o *types.Outcome)
	Summary(s *types.RunSummary)
}

// Output 格式.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// NewReporter 按格式创建 Reporter.
func NewReporter(format string, w io.Writer, colored bool) (Reporter, error) { //nolint:ireturn
	switch format {
	case OutputText, "":
		return NewTextReporter(w, colored), nil
	case OutputJSON:
		return NewJSONReporter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
}

type nopReporter struct{}

func (nopReporter) Report(*types.Outcome)     {}
func (nopReporter) Summary(*types.RunSummary) {}

// TextReporter 人类可读输出：绿色为当前值，黄色为将写入的新值.
type TextReporter struct {
	w      io.Writer
	before *color.Color
	after  *color.Color
	failed *color.Color
}

// NewTextReporter 创建文本输出，colored 为 false 时不输出颜色转义.
func NewTextReporter(w io.Writer, colored bool) *TextReporter {
	r := &TextReporter{
		w:      w,
		before: color.New(color.FgGreen),
		after:  color.New(color.FgYellow),
		failed: color.New(color.FgRed),
	}

	for _, c := range []*color.Color{r.before, r.after, r.failed} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return r
}

// Report 输出当前值；需要更新时输出新值；debug 时输出完整候选元数据.
func (r *TextReporter) Report(o *types.Outcome) {
	if o.Err != nil && !o.NeedsUpdate() {
		_, _ = r.failed.Fprintf(r.w, "%s error: %v\n", o.Key, o.Err)
		return
	}

	_, _ = r.before.Fprintln(r.w, headline(o.Key, o.Before))

	if o.NeedsUpdate() {
		line := headline(o.Key, o.After)
		if o.Action == types.ActionWouldUpdate {
			line += " (dry-run)"
		}

		_, _ = r.after.Fprintln(r.w, line)
	}

	if o.Candidate != nil {
		b, err := sonic.ConfigStd.MarshalIndent(o.Candidate, "", "  ")
		if err == nil {
			_, _ = fmt.Fprintln(r.w, string(b))
		}
	}

	if o.Err != nil {
		_, _ = r.failed.Fprintf(r.w, "%s error: %v\n", o.Key, o.Err)
	}
}

// Summary 输出汇总行.
func (r *TextReporter) Summary(s *types.RunSummary) {
	_, _ = fmt.Fprintf(r.w, "%d objects: %d updated, %d would update, %d unchanged, %d failed (%s)\n",
		s.Total, s.Updated, s.WouldUpdate, s.Unchanged, s.Failed, s.Elapsed.Round(time.Millisecond))
}

func headline(key string, md types.Metadata) string {
	return fmt.Sprintf("%s Cache-Control: %s, Content-Type: %s", key, orUnset(md.CacheControl), orUnset(md.ContentType))
}

func orUnset(s *string) string {
	if s == nil {
		return unset
	}

	return *s
}

// JSONReporter 每行一个 JSON 对象.
type JSONReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONReporter 创建 JSON Lines 输出.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w}
}

type jsonOutcome struct {
	*types.Outcome
	Error string `json:"error,omitempty"`
}

type jsonSummary struct {
	Type string `json:"type"`
	*types.RunSummary
}

// Report 输出单个对象的结果.
func (r *JSONReporter) Report(o *types.Outcome) {
	rec := jsonOutcome{Outcome: o}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}

	r.write(rec)
}

// Summary 输出汇总，type 字段为 "summary".
func (r *JSONReporter) Summary(s *types.RunSummary) {
	r.write(jsonSummary{Type: "summary", RunSummary: s})
}

func (r *JSONReporter) write(v any) {
	b, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = r.w.Write(append(b, '\n'))
}
