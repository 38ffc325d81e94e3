// Package report 记录一次整理运行中每个条目的处理结果。
package report

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moyu-x/organize/internal"
)

// Outcome 单个条目的处理结果
type Outcome string

const (
	Moved       Outcome = "moved"
	Skipped     Outcome = "skipped"
	Overwritten Outcome = "overwritten"
	Failed      Outcome = "failed"
	// Planned 仅出现在预览模式中
	Planned Outcome = "planned"
)

// Record 一条 (源路径, 目标路径, 结果) 记录
type Record struct {
	Source      string
	Destination string
	Category    string
	Outcome     Outcome
	Reason      string // 仅 Failed 时非空
	Size        int64
}

// Summary 各结果的计数
type Summary struct {
	Total       int
	Moved       int
	Skipped     int
	Overwritten int
	Failed      int
	Planned     int
	Bytes       int64 // 已移动或覆盖的字节数
}

// RunReport 一次运行的结果汇总，Add 可并发调用
type RunReport struct {
	ID        string
	SourceDir string
	Policy    internal.ConflictPolicy
	DryRun    bool
	StartTime time.Time
	EndTime   time.Time

	mu      sync.Mutex
	records []Record
}

func New(sourceDir string, policy internal.ConflictPolicy) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		SourceDir: sourceDir,
		Policy:    policy,
		StartTime: time.Now(),
	}
}

// Add 追加一条记录
func (r *RunReport) Add(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Finish 记录结束时间
func (r *RunReport) Finish() {
	r.mu.Lock()
	r.EndTime = time.Now()
	r.mu.Unlock()
}

// Records 返回记录副本，顺序为追加顺序
func (r *RunReport) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func (r *RunReport) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Find 按源路径查找记录
func (r *RunReport) Find(source string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Source == source {
			return rec, true
		}
	}
	return Record{}, false
}

func (r *RunReport) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Summary
	for _, rec := range r.records {
		s.Total++
		switch rec.Outcome {
		case Moved:
			s.Moved++
			s.Bytes += rec.Size
		case Skipped:
			s.Skipped++
		case Overwritten:
			s.Overwritten++
			s.Bytes += rec.Size
		case Failed:
			s.Failed++
		case Planned:
			s.Planned++
		}
	}
	return s
}

// Failures 返回所有失败记录
func (r *RunReport) Failures() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Outcome == Failed {
			out = append(out, rec)
		}
	}
	return out
}

func (r *RunReport) HasFailures() bool {
	return r.Summary().Failed > 0
}

// Duration 运行耗时，未结束时按当前时间计算
func (r *RunReport) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

func (r *RunReport) String() string {
	s := r.Summary()

	var buf bytes.Buffer
	buf.WriteString("========== 整理统计 ==========\n")
	buf.WriteString(fmt.Sprintf("源目录: %s\n", r.SourceDir))
	buf.WriteString(fmt.Sprintf("冲突策略: %s\n", r.Policy))
	buf.WriteString(fmt.Sprintf("总文件数: %d\n", s.Total))
	if r.DryRun {
		buf.WriteString(fmt.Sprintf("计划移动: %d\n", s.Planned))
	}
	buf.WriteString(fmt.Sprintf("已移动: %d\n", s.Moved))
	buf.WriteString(fmt.Sprintf("已覆盖: %d\n", s.Overwritten))
	buf.WriteString(fmt.Sprintf("已跳过: %d\n", s.Skipped))
	buf.WriteString(fmt.Sprintf("失败: %d\n", s.Failed))
	buf.WriteString(fmt.Sprintf("处理数据量: %s\n", FormatBytes(s.Bytes)))

	for _, rec := range r.Failures() {
		buf.WriteString(fmt.Sprintf("  - %s: %s\n", rec.Source, rec.Reason))
	}

	buf.WriteString("============================")
	return buf.String()
}

// FormatBytes 以 1024 进制格式化字节数
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
