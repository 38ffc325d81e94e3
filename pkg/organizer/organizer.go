// Package organizer 将源目录中的条目按分类规则移动到 源目录/<分类>/ 子目录。
//
// 每个扫描到的条目在 RunReport 中恰好出现一次；单个条目的失败只记录，不会中断批处理。
// 规则、策略和文件系统都通过参数传入，包内没有可变的全局状态。
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/classifier"
	"github.com/moyu-x/organize/pkg/logger"
	"github.com/moyu-x/organize/pkg/report"
	"github.com/moyu-x/organize/pkg/rules"
	"github.com/moyu-x/organize/pkg/scanner"
)

// Organizer 分类移动引擎
type Organizer struct {
	fs         afero.Fs
	rules      *rules.RuleSet
	opts       Options
	classifier *classifier.Classifier

	dirLocksMu sync.Mutex
	dirLocks   map[string]*sync.Mutex

	// 预览模式下已计划占用的目标路径，使后续条目的冲突判断与真实运行一致
	plannedMu sync.Mutex
	planned   map[string]bool
}

// New 创建引擎。fs 为 nil 时使用真实文件系统，rs 为 nil 时使用内置规则。
func New(fs afero.Fs, rs *rules.RuleSet, opts Options) *Organizer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if rs == nil {
		rs = rules.Default()
	}
	opts = opts.normalized()

	return &Organizer{
		fs:         fs,
		rules:      rs,
		opts:       opts,
		classifier: classifier.NewClassifier(fs, rs).WithContentDetection(opts.DetectContent),
		dirLocks:   make(map[string]*sync.Mutex),
		planned:    make(map[string]bool),
	}
}

// Organize 使用默认选项在真实文件系统上整理 sourceDir
func Organize(ctx context.Context, sourceDir string, rs *rules.RuleSet, policy internal.ConflictPolicy) (*report.RunReport, error) {
	if rs == nil {
		return nil, &internal.ConfigError{Err: errors.New("规则不能为空")}
	}
	return New(afero.NewOsFs(), rs, Options{}).Run(ctx, sourceDir, policy)
}

// Run 扫描并整理 sourceDir。
// 策略无效返回 ConfigError，源目录不可用返回 SourceNotFoundError，两者都发生在任何修改之前。
// 运行被取消时返回已填充的报告和 ctx.Err()，未处理的条目记录为 failed。
func (o *Organizer) Run(ctx context.Context, sourceDir string, policy internal.ConflictPolicy) (*report.RunReport, error) {
	if !policy.Valid() {
		return nil, &internal.ConfigError{Err: fmt.Errorf("无效的冲突策略 %q", policy)}
	}
	if o.opts.Mode != internal.ModeMove && o.opts.Mode != internal.ModeCopy {
		return nil, &internal.ConfigError{Err: fmt.Errorf("无效的操作模式 %q", o.opts.Mode)}
	}

	if err := o.validateSource(sourceDir); err != nil {
		return nil, err
	}

	if o.opts.LockDir != "" {
		unlock, err := acquireLock(o.opts.LockDir, sourceDir)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	walker := scanner.NewFileWalker(o.fs)
	walker.Recursive = o.opts.Recursive
	walker.IncludeHidden = !o.opts.SkipHidden
	walker.SkipTopDir = o.rules.IsDestination

	entries, err := walker.Scan(sourceDir)
	if err != nil {
		return nil, &internal.SourceNotFoundError{Path: sourceDir, Err: err}
	}

	o.plannedMu.Lock()
	o.planned = make(map[string]bool)
	o.plannedMu.Unlock()

	rep := report.New(sourceDir, policy)
	rep.DryRun = o.opts.DryRun

	log := logger.Get().With().Str("run", rep.ID).Logger()
	log.Info().
		Str("source", sourceDir).
		Str("policy", policy.String()).
		Str("mode", string(o.opts.Mode)).
		Bool("dry_run", o.opts.DryRun).
		Int("entries", len(entries)).
		Msg("开始整理")

	if o.opts.Workers > 1 {
		o.runParallel(ctx, sourceDir, policy, entries, rep)
	} else {
		for _, entry := range entries {
			o.handle(ctx, sourceDir, policy, entry, rep)
		}
	}

	rep.Finish()

	s := rep.Summary()
	log.Info().
		Int("total", s.Total).
		Int("moved", s.Moved).
		Int("overwritten", s.Overwritten).
		Int("skipped", s.Skipped).
		Int("planned", s.Planned).
		Int("failed", s.Failed).
		Dur("duration", rep.Duration()).
		Msg("整理完成")

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

func (o *Organizer) runParallel(ctx context.Context, sourceDir string, policy internal.ConflictPolicy, entries []scanner.FileEntry, rep *report.RunReport) {
	pool, err := newWorkerPool(o.opts.Workers)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("创建处理池失败，改为单线程处理")
		for _, entry := range entries {
			o.handle(ctx, sourceDir, policy, entry, rep)
		}
		return
	}

	for _, entry := range entries {
		entry := entry
		if err := pool.Submit(func() { o.handle(ctx, sourceDir, policy, entry, rep) }); err != nil {
			rep.Add(report.Record{
				Source:  entry.Path,
				Outcome: report.Failed,
				Reason:  fmt.Sprintf("提交任务失败: %v", err),
				Size:    entry.Size,
			})
		}
	}
	pool.Wait()
}

// handle 处理单个条目并写入报告：分类 -> 解决冲突 -> 移动 -> 记录
func (o *Organizer) handle(ctx context.Context, sourceDir string, policy internal.ConflictPolicy, entry scanner.FileEntry, rep *report.RunReport) {
	if err := ctx.Err(); err != nil {
		rep.Add(report.Record{
			Source:  entry.Path,
			Outcome: report.Failed,
			Reason:  internal.ErrCancelled.Error(),
			Size:    entry.Size,
		})
		return
	}

	result := o.classifier.Classify(entry)
	rec := o.place(sourceDir, policy, entry, result.Folder)
	rep.Add(rec)

	ev := logger.Get().Debug()
	if rec.Outcome == report.Failed {
		ev = logger.Get().Error()
	}
	ev.Str("source", rec.Source).
		Str("destination", rec.Destination).
		Str("category", rec.Category).
		Str("by", string(result.Source)).
		Str("outcome", string(rec.Outcome)).
		Str("reason", rec.Reason).
		Msg("文件处理完成")
}

// place 计算目标路径、应用冲突策略并执行文件操作
func (o *Organizer) place(sourceDir string, policy internal.ConflictPolicy, entry scanner.FileEntry, folder string) report.Record {
	destDir := filepath.Join(sourceDir, folder)
	dest := filepath.Join(destDir, entry.Name)

	rec := report.Record{
		Source:      entry.Path,
		Destination: dest,
		Category:    folder,
		Size:        entry.Size,
	}
	fail := func(op string, err error) report.Record {
		rec.Outcome = report.Failed
		rec.Reason = (&internal.EntryProcessingError{Path: entry.Path, Op: op, Err: err}).Error()
		return rec
	}

	// 冲突检查与移动必须对同一目标目录串行，否则 rename 可能分配出相同的名字
	unlock := o.lockDir(destDir)
	defer unlock()

	if info, exists, err := o.stat(destDir); err != nil {
		return fail("检查目标目录", err)
	} else if exists && !info.IsDir() {
		return fail("检查目标目录", fmt.Errorf("%s 已存在且不是目录", destDir))
	}

	existing, exists, err := o.occupied(dest)
	if err != nil {
		return fail("检查目标文件", err)
	}

	outcome := report.Moved
	if exists {
		switch policy {
		case internal.PolicySkip:
			rec.Outcome = report.Skipped
			return rec
		case internal.PolicyOverwrite:
			if existing != nil && existing.IsDir() {
				return fail("覆盖", fmt.Errorf("目标 %s 是目录", dest))
			}
			outcome = report.Overwritten
		case internal.PolicyRename:
			unique, err := o.uniqueName(dest)
			if err != nil {
				return fail("重命名", err)
			}
			logger.Get().Debug().
				Str("original_path", dest).
				Str("new_path", unique).
				Msg("文件名冲突，自动重命名")
			dest = unique
			rec.Destination = dest
		}
	}

	if o.opts.DryRun {
		o.reserve(dest)
		rec.Outcome = report.Planned
		if outcome == report.Overwritten {
			rec.Reason = "将覆盖已有文件"
		}
		return rec
	}

	if err := o.fs.MkdirAll(destDir, 0755); err != nil {
		return fail("创建目录", err)
	}

	if o.opts.Mode == internal.ModeCopy {
		if err := o.copyFile(entry.Path, dest); err != nil {
			return fail("复制", err)
		}
	} else if err := o.moveFile(entry.Path, dest); err != nil {
		return fail("移动", err)
	}

	rec.Outcome = outcome
	return rec
}

func (o *Organizer) validateSource(sourceDir string) error {
	info, err := o.fs.Stat(sourceDir)
	if err != nil {
		return &internal.SourceNotFoundError{Path: sourceDir, Err: err}
	}
	if !info.IsDir() {
		return &internal.SourceNotFoundError{Path: sourceDir, Err: fmt.Errorf("不是目录")}
	}

	f, err := o.fs.Open(sourceDir)
	if err != nil {
		return &internal.SourceNotFoundError{Path: sourceDir, Err: err}
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !isEOF(err) {
		return &internal.SourceNotFoundError{Path: sourceDir, Err: err}
	}
	return nil
}

// occupied 判断目标路径是否已被占用。预览模式下，之前条目计划使用的路径也算占用，
// 此时返回的 FileInfo 为 nil。
func (o *Organizer) occupied(path string) (os.FileInfo, bool, error) {
	info, exists, err := o.stat(path)
	if err != nil || exists || !o.opts.DryRun {
		return info, exists, err
	}
	o.plannedMu.Lock()
	defer o.plannedMu.Unlock()
	return nil, o.planned[path], nil
}

func (o *Organizer) reserve(path string) {
	o.plannedMu.Lock()
	o.planned[path] = true
	o.plannedMu.Unlock()
}

func (o *Organizer) lockDir(dir string) func() {
	o.dirLocksMu.Lock()
	mu, ok := o.dirLocks[dir]
	if !ok {
		mu = &sync.Mutex{}
		o.dirLocks[dir] = mu
	}
	o.dirLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
