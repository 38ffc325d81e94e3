package internal

import (
	"fmt"
	"strings"
)

// 冲突策略：目标路径已存在同名条目时的处理方式
type ConflictPolicy string

const (
	PolicySkip      ConflictPolicy = "skip"
	PolicyOverwrite ConflictPolicy = "overwrite"
	PolicyRename    ConflictPolicy = "rename"
)

// ParsePolicy 解析冲突策略，接受 rename-with-suffix 作为 rename 的别名
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return PolicySkip, nil
	case "overwrite":
		return PolicyOverwrite, nil
	case "rename", "rename-with-suffix":
		return PolicyRename, nil
	}
	return "", &ConfigError{Err: fmt.Errorf("无效的冲突策略 %q（可选: skip, overwrite, rename）", s)}
}

// Valid 判断策略是否为已知取值
func (p ConflictPolicy) Valid() bool {
	switch p {
	case PolicySkip, PolicyOverwrite, PolicyRename:
		return true
	}
	return false
}

func (p ConflictPolicy) String() string {
	return string(p)
}

// 操作模式
type OperationMode string

const (
	ModeMove OperationMode = "move"
	ModeCopy OperationMode = "copy"
)
