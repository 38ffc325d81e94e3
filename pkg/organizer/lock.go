package organizer

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"

	"github.com/moyu-x/organize/internal"
)

// lockPath 锁文件按源目录绝对路径的哈希命名，位于 lockDir 下，不会出现在源目录中
func lockPath(lockDir, sourceDir string) (string, error) {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", err
	}
	name := internal.LockFilePrefix + strconv.FormatUint(xxhash.Sum64String(abs), 16) + ".lock"
	return filepath.Join(lockDir, name), nil
}

// acquireLock 非阻塞地获取源目录锁，返回释放函数
func acquireLock(lockDir, sourceDir string) (func(), error) {
	path, err := lockPath(lockDir, sourceDir)
	if err != nil {
		return nil, fmt.Errorf("计算锁文件路径失败: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取锁失败: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", internal.ErrSourceLocked, sourceDir)
	}
	return func() { _ = lock.Unlock() }, nil
}
