package internal

import (
	"errors"
	"fmt"
)

// ErrEntriesFailed 表示至少一个条目处理失败，批处理本身已完成
var ErrEntriesFailed = errors.New("部分文件处理失败")

// ErrCancelled 是运行被中断时未处理条目记录的失败原因
var ErrCancelled = errors.New("cancelled")

// ErrSourceLocked 同一源目录已有其他整理进程在运行
var ErrSourceLocked = errors.New("源目录正被其他整理进程使用")

// ConfigError 规则文件或参数无效，在任何文件系统修改之前报告
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("配置错误: %v", e.Err)
	}
	return fmt.Sprintf("配置错误 %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SourceNotFoundError 源目录不存在、不是目录或不可读
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("源目录不可用 %s: %v", e.Path, e.Err)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// EntryProcessingError 单个条目处理失败，只记录到报告中，不中断批处理
type EntryProcessingError struct {
	Path string
	Op   string
	Err  error
}

func (e *EntryProcessingError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryProcessingError) Unwrap() error { return e.Err }

// IsFatal 判断错误是否需要以参数错误退出（退出码 2）
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	var srcErr *SourceNotFoundError
	return errors.As(err, &cfgErr) || errors.As(err, &srcErr) || errors.Is(err, ErrSourceLocked)
}
