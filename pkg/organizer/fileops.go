package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/logger"
	"github.com/moyu-x/organize/pkg/rules"
)

// moveFile 使用 rename 操作将文件从源路径移动到目标路径。
// 仅在跨设备（EXDEV）时改为校验复制后删除源文件；任何失败都不会留下
// 目标文件，也不会破坏已存在的目标文件。
func (o *Organizer) moveFile(src, dst string) error {
	err := o.fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	logger.Get().Debug().
		Err(err).
		Str("source", src).
		Str("destination", dst).
		Msg("跨设备重命名失败，尝试复制后删除")

	tmp, copyErr := o.copyToTemp(src, dst)
	if copyErr != nil {
		return fmt.Errorf("重命名失败 (%v)，复制也失败: %w", err, copyErr)
	}

	if err := o.fs.Remove(src); err != nil {
		_ = o.fs.Remove(tmp)
		return fmt.Errorf("删除原文件失败: %w", err)
	}

	if err := o.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("原文件已删除，内容保留在 %s: %w", tmp, err)
	}
	return nil
}

// copyFile 校验复制 src 到 dst，源文件保留。
// 内容先写入同目录的临时文件，校验通过后再替换 dst。
func (o *Organizer) copyFile(src, dst string) error {
	tmp, err := o.copyToTemp(src, dst)
	if err != nil {
		return err
	}
	if err := o.fs.Rename(tmp, dst); err != nil {
		_ = o.fs.Remove(tmp)
		return fmt.Errorf("替换目标文件失败: %w", err)
	}
	return nil
}

// copyToTemp 把 src 复制到 dst 所在目录的临时文件并用 xxHash 校验，
// 返回临时文件路径。失败时临时文件已被删除。
// 临时文件保留源文件的权限和修改时间。
func (o *Organizer) copyToTemp(src, dst string) (string, error) {
	info, err := o.fs.Stat(src)
	if err != nil {
		return "", fmt.Errorf("读取源文件信息失败: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("不是普通文件，无法复制: %s", src)
	}

	out, err := afero.TempFile(o.fs, filepath.Dir(dst), "."+filepath.Base(dst)+internal.TempFileSuffix)
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmp := out.Name()

	srcHash, written, err := o.copyContents(src, out)
	if err != nil {
		_ = o.fs.Remove(tmp)
		return "", err
	}

	if written != info.Size() {
		_ = o.fs.Remove(tmp)
		return "", fmt.Errorf("复制大小不一致: 源文件 %d 字节，已复制 %d 字节", info.Size(), written)
	}

	dstHash, err := hashFile(o.fs, tmp)
	if err != nil {
		_ = o.fs.Remove(tmp)
		return "", fmt.Errorf("校验目标文件失败: %w", err)
	}
	if dstHash != srcHash {
		_ = o.fs.Remove(tmp)
		return "", fmt.Errorf("复制校验失败: 哈希不一致")
	}

	if err := o.fs.Chmod(tmp, info.Mode().Perm()); err != nil {
		logger.Get().Debug().Err(err).Str("file", tmp).Msg("保留权限失败")
	}
	if err := o.fs.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		logger.Get().Debug().Err(err).Str("file", tmp).Msg("保留修改时间失败")
	}
	return tmp, nil
}

// copyContents 把 src 写入 out 并关闭 out，返回源内容的哈希和写入字节数
func (o *Organizer) copyContents(src string, out afero.File) (uint64, int64, error) {
	in, err := o.fs.Open(src)
	if err != nil {
		out.Close()
		return 0, 0, fmt.Errorf("打开源文件失败: %w", err)
	}
	defer in.Close()

	h := xxhash.New()
	buf := make([]byte, internal.DefaultBufferSize)
	written, err := io.CopyBuffer(out, io.TeeReader(in, h), buf)
	if err != nil {
		out.Close()
		return 0, written, fmt.Errorf("复制文件内容失败: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, written, fmt.Errorf("关闭目标文件失败: %w", err)
	}
	return h.Sum64(), written, nil
}

func hashFile(fs afero.Fs, path string) (uint64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// stat 优先使用 Lstat，使指向不存在目标的符号链接也被视为已存在
func (o *Organizer) stat(path string) (os.FileInfo, bool, error) {
	var (
		info os.FileInfo
		err  error
	)
	if lst, ok := o.fs.(afero.Lstater); ok {
		info, _, err = lst.LstatIfPossible(path)
	} else {
		info, err = o.fs.Stat(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return info, true, nil
}

// uniqueName 返回第一个不存在的 "name (N).ext" 路径，N 从 1 开始
func (o *Organizer) uniqueName(path string) (string, error) {
	dir := filepath.Dir(path)
	base, ext := splitName(filepath.Base(path))

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
		_, exists, err := o.occupied(candidate)
		if err != nil {
			return "", fmt.Errorf("检查文件是否存在失败: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// splitName 拆分文件名与扩展名，".bashrc" 这类文件视为没有扩展名
func splitName(name string) (string, string) {
	if rules.Extension(name) == "" {
		return name, ""
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
