package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"

	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/logger"
	"github.com/moyu-x/organize/pkg/rules"
)

// FileEntry 扫描时刻的文件快照，不持有文件句柄
type FileEntry struct {
	Path    string // 绝对或相对于调用方的完整路径
	RelPath string // 相对源目录的路径
	Name    string
	Ext     string // 规范化扩展名，不含点
	Size    int64
	ModTime time.Time
	Mode    os.FileMode
}

type FileWalker struct {
	Fs            afero.Fs
	Recursive     bool
	IncludeHidden bool
	// SkipTopDir 返回 true 的源目录一级子目录不会被扫描
	SkipTopDir func(name string) bool
}

func NewFileWalker(fs afero.Fs) *FileWalker {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileWalker{Fs: fs, IncludeHidden: true}
}

// Scan 返回 root 下待处理的文件快照。目录本身不会作为条目返回。
func (w *FileWalker) Scan(root string) ([]FileEntry, error) {
	matcher, err := w.loadIgnore(root)
	if err != nil {
		return nil, err
	}

	var entries []FileEntry
	err = w.Walk(root, matcher, func(path, rel string, info os.FileInfo) error {
		entries = append(entries, FileEntry{
			Path:    path,
			RelPath: rel,
			Name:    info.Name(),
			Ext:     rules.Extension(info.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Debug().Int("count", len(entries)).Str("root", root).Msg("扫描完成")
	return entries, nil
}

// Walk 遍历 root，对每个待处理文件调用 callback。
// 非递归模式只访问一级条目；子目录中的读取错误被记录并跳过。
func (w *FileWalker) Walk(root string, matcher *ignore.GitIgnore, callback func(path, rel string, info os.FileInfo) error) error {
	top, err := afero.ReadDir(w.Fs, root)
	if err != nil {
		return fmt.Errorf("读取目录 %s: %w", root, err)
	}

	for _, info := range top {
		name := info.Name()
		if w.excluded(name, name, info.IsDir(), matcher) {
			continue
		}
		if info.IsDir() {
			if !w.Recursive || (w.SkipTopDir != nil && w.SkipTopDir(name)) {
				continue
			}
			if err := w.walkSubdir(root, filepath.Join(root, name), matcher, callback); err != nil {
				return err
			}
			continue
		}
		if err := callback(filepath.Join(root, name), name, info); err != nil {
			return err
		}
	}
	return nil
}

func (w *FileWalker) walkSubdir(root, dir string, matcher *ignore.GitIgnore, callback func(path, rel string, info os.FileInfo) error) error {
	return afero.Walk(w.Fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Get().Warn().Err(err).Str("path", path).Msg("访问路径出错，已跳过")
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if path != dir && w.excluded(info.Name(), rel, info.IsDir(), matcher) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		return callback(path, rel, info)
	})
}

func (w *FileWalker) excluded(name, rel string, isDir bool, matcher *ignore.GitIgnore) bool {
	if rel == internal.IgnoreFileName {
		return true
	}
	if !w.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if matcher == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		return matcher.MatchesPath(rel) || matcher.MatchesPath(rel+"/")
	}
	return matcher.MatchesPath(rel)
}

// loadIgnore 读取源目录下的忽略规则文件，不存在时返回 nil
func (w *FileWalker) loadIgnore(root string) (*ignore.GitIgnore, error) {
	path := filepath.Join(root, internal.IgnoreFileName)
	data, err := afero.ReadFile(w.Fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取忽略规则文件 %s: %w", path, err)
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), nil
}
