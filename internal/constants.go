package internal

const (
	// 未匹配任何规则的文件归入的目录
	DefaultFallbackFolder = "misc"

	// 源目录下的忽略规则文件（gitignore 语法）
	IgnoreFileName = ".organizeignore"

	// 文件类型检测所需的文件头部大小（字节）
	FileHeaderSize = 261

	// 复制文件时的缓冲区大小
	DefaultBufferSize = 32 * 1024

	// 默认单线程处理
	DefaultWorkers = 1

	// 复制时临时文件名后缀，afero.TempFile 在其后追加随机数
	TempFileSuffix = ".organize-tmp-"

	// 锁文件名前缀，锁文件位于系统临时目录
	LockFilePrefix = "organize-"
)
