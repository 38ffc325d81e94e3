package classifier

import (
	"fmt"
	"io"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/spf13/afero"

	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/logger"
	"github.com/moyu-x/organize/pkg/rules"
	"github.com/moyu-x/organize/pkg/scanner"
)

// Source 表示分类结果的依据
type Source string

const (
	SourceExtension Source = "extension"
	SourceContent   Source = "content"
	SourceFallback  Source = "fallback"
)

// Result 分类结果
type Result struct {
	Folder string
	Source Source
	// Detected 内容检测得到的扩展名，仅在 SourceContent 时非空
	Detected string
}

type Classifier struct {
	fs            afero.Fs
	rules         *rules.RuleSet
	detectContent bool
}

// NewClassifier 创建按扩展名分类的分类器
func NewClassifier(fs afero.Fs, rs *rules.RuleSet) *Classifier {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if rs == nil {
		rs = rules.Default()
	}
	return &Classifier{fs: fs, rules: rs}
}

// WithContentDetection 开启后，扩展名未匹配的文件会读取文件头判断真实类型，
// 再用检测到的扩展名查找规则
func (c *Classifier) WithContentDetection(enabled bool) *Classifier {
	c.detectContent = enabled
	return c
}

// Classify 确定条目的目标目录
func (c *Classifier) Classify(entry scanner.FileEntry) Result {
	if folder, ok := c.rules.Lookup(entry.Ext); ok {
		return Result{Folder: folder, Source: SourceExtension}
	}

	if c.detectContent && entry.Mode.IsRegular() {
		kind, err := c.DetectFileType(entry.Path)
		if err != nil {
			logger.Get().Debug().Err(err).Str("file", entry.Path).Msg("检测文件类型失败")
		} else if kind != types.Unknown {
			if folder, ok := c.rules.Lookup(kind.Extension); ok {
				return Result{Folder: folder, Source: SourceContent, Detected: kind.Extension}
			}
		}
	}

	return Result{Folder: c.rules.Fallback(), Source: SourceFallback}
}

// DetectFileType 读取文件头部并使用 filetype 库进行类型检测
func (c *Classifier) DetectFileType(filePath string) (types.Type, error) {
	head, err := c.readFileHeader(filePath, internal.FileHeaderSize)
	if err != nil {
		return types.Unknown, err
	}
	return filetype.Match(head)
}

func (c *Classifier) readFileHeader(filePath string, size int) ([]byte, error) {
	file, err := c.fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	head := make([]byte, size)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("读取文件头部失败: %w", err)
	}
	return head[:n], nil
}
