package rules

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/moyu-x/organize/internal"
)

// fileFormat 规则文件（TOML）结构
//
//	fallback = "misc"
//	replace_defaults = false
//
//	[categories]
//	images = [".jpg", ".png"]
//
//	[extensions]
//	".heic" = "images"
type fileFormat struct {
	Fallback        string              `toml:"fallback"`
	ReplaceDefaults bool                `toml:"replace_defaults"`
	Categories      map[string][]string `toml:"categories"`
	Extensions      map[string]string   `toml:"extensions"`
}

// Load 读取规则文件并叠加到 base 之上。
// path 为空时直接返回 base；base 为 nil 时使用内置规则。
// 所有错误都包装为 ConfigError，调用方可在修改文件系统之前终止。
func Load(fs afero.Fs, path string, base *RuleSet) (*RuleSet, error) {
	if base == nil {
		base = Default()
	}
	if path == "" {
		return base, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &internal.ConfigError{Path: path, Err: fmt.Errorf("读取规则文件: %w", err)}
	}

	rs, err := Parse(data, base)
	if err != nil {
		var cfgErr *internal.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = path
			return nil, cfgErr
		}
		return nil, &internal.ConfigError{Path: path, Err: err}
	}
	return rs, nil
}

// Parse 解析 TOML 规则内容并叠加到 base 之上
func Parse(data []byte, base *RuleSet) (*RuleSet, error) {
	var ff fileFormat
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ff); err != nil {
		return nil, &internal.ConfigError{Err: fmt.Errorf("解析规则文件: %w", err)}
	}

	parsed, err := ff.rules()
	if err != nil {
		return nil, err
	}

	if ff.ReplaceDefaults || base == nil {
		return New(parsed, ff.Fallback)
	}
	return base.Override(parsed, ff.Fallback)
}

// rules 展开两种写法，按目录名排序以保证错误信息稳定
func (ff *fileFormat) rules() ([]Rule, error) {
	folders := make([]string, 0, len(ff.Categories))
	for folder := range ff.Categories {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	var out []Rule
	for _, folder := range folders {
		for _, ext := range ff.Categories[folder] {
			out = append(out, Rule{Extension: ext, Folder: folder})
		}
	}

	exts := make([]string, 0, len(ff.Extensions))
	for ext := range ff.Extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		out = append(out, Rule{Extension: ext, Folder: ff.Extensions[ext]})
	}

	// 重复检测在 New 中完成
	if _, err := New(out, ff.Fallback); err != nil {
		return nil, err
	}
	return out, nil
}
