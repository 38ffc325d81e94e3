package organizer

import "github.com/moyu-x/organize/internal"

// Options 控制扫描范围和文件操作方式，零值即默认行为：
// 非递归、处理隐藏文件、只按扩展名分类、移动文件、单线程、不加锁。
type Options struct {
	Recursive     bool                   // 递归扫描子目录
	SkipHidden    bool                   // 跳过以点开头的文件和目录
	DetectContent bool                   // 扩展名未匹配时检测文件内容
	DryRun        bool                   // 只预览，不修改文件系统
	Mode          internal.OperationMode // move（默认）或 copy
	Workers       int                    // 大于 1 时并发处理
	LockDir       string                 // 非空时在该目录下创建源目录锁文件
}

func (o Options) normalized() Options {
	if o.Mode == "" {
		o.Mode = internal.ModeMove
	}
	if o.Workers < 1 {
		o.Workers = internal.DefaultWorkers
	}
	return o
}
