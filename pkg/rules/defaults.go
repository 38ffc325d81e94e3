package rules

import "github.com/moyu-x/organize/internal"

// defaultCategories 内置的目录到扩展名映射
var defaultCategories = map[string][]string{
	"images":    {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "svg", "webp", "heic"},
	"documents": {"pdf", "doc", "docx", "txt", "rtf", "xls", "xlsx", "ppt", "pptx", "odt", "ods", "odp", "md"},
	"audio":     {"mp3", "wav", "ogg", "aac", "flac", "m4a"},
	"video":     {"mp4", "mov", "avi", "mkv", "wmv", "webm", "flv"},
	"archives":  {"zip", "tar", "gz", "bz2", "xz", "rar", "7z"},
	"code":      {"py", "js", "ts", "html", "css", "c", "cpp", "h", "java", "php", "rb", "go", "rs", "sh"},
}

// Default 返回内置规则。每次调用返回新值，调用方之间互不影响。
func Default() *RuleSet {
	return MustNew(FromCategories(defaultCategories), internal.DefaultFallbackFolder)
}

// FromCategories 将 目录 -> 扩展名列表 展开为规则列表
func FromCategories(categories map[string][]string) []Rule {
	var out []Rule
	for folder, exts := range categories {
		for _, ext := range exts {
			out = append(out, Rule{Extension: ext, Folder: folder})
		}
	}
	return out
}
