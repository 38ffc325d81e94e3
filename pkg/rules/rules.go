// Package rules 定义扩展名到目标目录的分类规则。
//
// RuleSet 构造后不可修改，整理引擎通过参数接收它，不依赖任何包级可变状态。
package rules

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moyu-x/organize/internal"
)

// Rule 将一个扩展名映射到一个目标目录名
type Rule struct {
	Extension string
	Folder    string
}

// RuleSet 不可变的分类规则集合，扩展名唯一
type RuleSet struct {
	byExt    map[string]string
	fallback string
}

// New 创建规则集合。扩展名会被规范化（小写、去掉前导点），
// 规范化后重复的扩展名视为配置错误。
func New(rules []Rule, fallback string) (*RuleSet, error) {
	if fallback == "" {
		fallback = internal.DefaultFallbackFolder
	}
	if err := validateFolder(fallback); err != nil {
		return nil, &internal.ConfigError{Err: fmt.Errorf("默认目录: %w", err)}
	}

	byExt := make(map[string]string, len(rules))
	for _, r := range rules {
		ext := NormalizeExt(r.Extension)
		if ext == "" {
			return nil, &internal.ConfigError{Err: fmt.Errorf("扩展名不能为空（目录 %q）", r.Folder)}
		}
		// 文件名只取最后一段扩展名，"tar.gz" 这样的规则永远不会匹配
		if strings.ContainsAny(ext, `./\`) {
			return nil, &internal.ConfigError{Err: fmt.Errorf("扩展名 %q 只能有一段，例如 gz 而不是 tar.gz", r.Extension)}
		}
		if err := validateFolder(r.Folder); err != nil {
			return nil, &internal.ConfigError{Err: fmt.Errorf("扩展名 %q: %w", r.Extension, err)}
		}
		if prev, ok := byExt[ext]; ok {
			return nil, &internal.ConfigError{Err: fmt.Errorf("扩展名 %q 重复（%s, %s）", ext, prev, r.Folder)}
		}
		byExt[ext] = r.Folder
	}

	return &RuleSet{byExt: byExt, fallback: fallback}, nil
}

// MustNew 与 New 相同，出错时 panic，仅用于内置规则
func MustNew(rules []Rule, fallback string) *RuleSet {
	rs, err := New(rules, fallback)
	if err != nil {
		panic(err)
	}
	return rs
}

// Override 返回一个新的规则集合：overrides 中的扩展名替换当前映射，
// overrides 自身不得包含重复扩展名。fallback 为空时沿用当前值。
func (r *RuleSet) Override(overrides []Rule, fallback string) (*RuleSet, error) {
	// 先单独校验 overrides，保证其内部无重复
	if _, err := New(overrides, fallback); err != nil {
		return nil, err
	}

	if fallback == "" {
		fallback = r.fallback
	}

	overridden := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		overridden[NormalizeExt(o.Extension)] = true
	}

	merged := make([]Rule, 0, len(r.byExt)+len(overrides))
	for ext, folder := range r.byExt {
		if !overridden[ext] {
			merged = append(merged, Rule{Extension: ext, Folder: folder})
		}
	}
	merged = append(merged, overrides...)

	return New(merged, fallback)
}

// Lookup 按扩展名查找目标目录
func (r *RuleSet) Lookup(ext string) (string, bool) {
	folder, ok := r.byExt[NormalizeExt(ext)]
	return folder, ok
}

// Category 返回文件名对应的目标目录，未匹配时返回默认目录
func (r *RuleSet) Category(name string) string {
	if folder, ok := r.Lookup(Extension(name)); ok {
		return folder
	}
	return r.fallback
}

// Fallback 返回未匹配文件的目标目录
func (r *RuleSet) Fallback() string {
	return r.fallback
}

// Len 返回规则数量
func (r *RuleSet) Len() int {
	return len(r.byExt)
}

// Folders 返回全部目标目录（含默认目录），已排序去重
func (r *RuleSet) Folders() []string {
	seen := map[string]bool{r.fallback: true}
	folders := []string{r.fallback}
	for _, folder := range r.byExt {
		if !seen[folder] {
			seen[folder] = true
			folders = append(folders, folder)
		}
	}
	sort.Strings(folders)
	return folders
}

// IsDestination 判断目录名是否为某条规则的目标目录
func (r *RuleSet) IsDestination(name string) bool {
	if name == r.fallback {
		return true
	}
	for _, folder := range r.byExt {
		if folder == name {
			return true
		}
	}
	return false
}

// Rules 返回按目录、扩展名排序的规则列表
func (r *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(r.byExt))
	for ext, folder := range r.byExt {
		out = append(out, Rule{Extension: ext, Folder: folder})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Folder != out[j].Folder {
			return out[i].Folder < out[j].Folder
		}
		return out[i].Extension < out[j].Extension
	})
	return out
}

// NormalizeExt 小写并去掉前导点：".JPG" -> "jpg"
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Extension 返回文件名的规范化扩展名。
// 仅以点开头的隐藏文件（如 .bashrc）视为没有扩展名。
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == name || ext == "." {
		return ""
	}
	return NormalizeExt(ext)
}

func validateFolder(folder string) error {
	switch {
	case strings.TrimSpace(folder) == "":
		return fmt.Errorf("目录名不能为空")
	case folder == "." || folder == "..":
		return fmt.Errorf("目录名无效: %q", folder)
	case strings.ContainsAny(folder, `/\`):
		return fmt.Errorf("目录名不能包含路径分隔符: %q", folder)
	}
	return nil
}
