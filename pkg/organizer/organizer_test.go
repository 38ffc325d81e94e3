package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/report"
	"github.com/moyu-x/organize/pkg/rules"
)

const src = "/src"

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

// snapshot 返回 文件路径 -> 内容
func snapshot(t *testing.T, fs afero.Fs, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			out[path] = readFile(t, fs, path)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func testRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.New([]rules.Rule{
		{Extension: ".jpg", Folder: "images"},
		{Extension: ".png", Folder: "images"},
		{Extension: ".pdf", Folder: "documents"},
		{Extension: ".docx", Folder: "documents"},
		{Extension: ".zip", Folder: "archives"},
		{Extension: ".tar", Folder: "archives"},
	}, "misc")
	require.NoError(t, err)
	return rs
}

func TestRun_DefaultScenario(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")
	writeFile(t, fs, src+"/b.pdf", "pdf")
	writeFile(t, fs, src+"/c.unknownext", "???")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	assert.True(t, exists(t, fs, src+"/images/a.jpg"))
	assert.True(t, exists(t, fs, src+"/documents/b.pdf"))
	assert.True(t, exists(t, fs, src+"/misc/c.unknownext"))
	assert.False(t, exists(t, fs, src+"/a.jpg"))

	require.Equal(t, 3, rep.Len())
	for _, rec := range rep.Records() {
		assert.Equal(t, report.Moved, rec.Outcome, rec.Source)
	}
	assert.False(t, rep.HasFailures())
}

func TestRun_CaseInsensitiveExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/Photo.JPG", "jpg")

	_, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)
	assert.True(t, exists(t, fs, src+"/images/Photo.JPG"))
}

func TestRun_SkipLeavesSourceInPlace(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "new")
	writeFile(t, fs, src+"/images/a.jpg", "old")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	rec, ok := rep.Find(src + "/a.jpg")
	require.True(t, ok)
	assert.Equal(t, report.Skipped, rec.Outcome)
	assert.Equal(t, "new", readFile(t, fs, src+"/a.jpg"))
	assert.Equal(t, "old", readFile(t, fs, src+"/images/a.jpg"))
}

func TestRun_Overwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "new")
	writeFile(t, fs, src+"/images/a.jpg", "old")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicyOverwrite)
	require.NoError(t, err)

	rec, ok := rep.Find(src + "/a.jpg")
	require.True(t, ok)
	assert.Equal(t, report.Overwritten, rec.Outcome)
	assert.Equal(t, "new", readFile(t, fs, src+"/images/a.jpg"))
	assert.False(t, exists(t, fs, src+"/a.jpg"))
}

func TestRun_OverwriteRefusesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "new")
	require.NoError(t, fs.MkdirAll(src+"/images/a.jpg", 0755))

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicyOverwrite)
	require.NoError(t, err)

	rec, ok := rep.Find(src + "/a.jpg")
	require.True(t, ok)
	assert.Equal(t, report.Failed, rec.Outcome)
	assert.NotEmpty(t, rec.Reason)
	assert.Equal(t, "new", readFile(t, fs, src+"/a.jpg"))
}

func TestRun_RenameWithSuffix(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "new")
	writeFile(t, fs, src+"/images/a.jpg", "old")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicyRename)
	require.NoError(t, err)

	rec, ok := rep.Find(src + "/a.jpg")
	require.True(t, ok)
	assert.Equal(t, report.Moved, rec.Outcome)
	assert.Equal(t, filepath.Join(src, "images", "a (1).jpg"), rec.Destination)
	assert.Equal(t, "old", readFile(t, fs, src+"/images/a.jpg"))
	assert.Equal(t, "new", readFile(t, fs, src+"/images/a (1).jpg"))
}

func TestRun_RenamePicksFirstUnusedSuffix(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "new")
	writeFile(t, fs, src+"/images/a.jpg", "old")
	writeFile(t, fs, src+"/images/a (1).jpg", "old1")
	writeFile(t, fs, src+"/images/a (3).jpg", "old3")

	before := snapshot(t, fs, src+"/images")

	_, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicyRename)
	require.NoError(t, err)

	assert.Equal(t, "new", readFile(t, fs, src+"/images/a (2).jpg"))
	for path, content := range before {
		assert.Equal(t, content, readFile(t, fs, path), "existing file %s must be untouched", path)
	}
}

func TestRun_IdempotentWithSkip(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")
	writeFile(t, fs, src+"/b.pdf", "pdf")
	writeFile(t, fs, src+"/c.unknownext", "???")

	org := New(fs, testRules(t), Options{})
	_, err := org.Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)
	first := snapshot(t, fs, src)

	rep, err := org.Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)
	second := snapshot(t, fs, src)

	assert.Equal(t, first, second)
	assert.Equal(t, 0, rep.Len())
}

func TestRun_EveryEntryReportedOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	names := []string{"a.jpg", "b.png", "c.pdf", "d.zip", "e", "f.tar", "g.docx", "h.weird"}
	for _, name := range names {
		writeFile(t, fs, filepath.Join(src, name), name)
	}
	// 目标已存在的条目也必须出现在报告中
	writeFile(t, fs, src+"/images/a.jpg", "old")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, rec := range rep.Records() {
		seen[rec.Source]++
		assert.Contains(t, []report.Outcome{report.Moved, report.Skipped, report.Overwritten, report.Failed}, rec.Outcome)
	}
	require.Len(t, seen, len(names))
	for _, name := range names {
		assert.Equal(t, 1, seen[filepath.Join(src, name)], name)
	}
}

func TestRun_PartialFailureContinues(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")
	// 与目标目录同名的文件，使 images 无法作为目录使用
	writeFile(t, fs, src+"/images", "not a dir")
	writeFile(t, fs, src+"/b.pdf", "pdf")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	rec, ok := rep.Find(src + "/a.jpg")
	require.True(t, ok)
	assert.Equal(t, report.Failed, rec.Outcome)
	assert.True(t, exists(t, fs, src+"/a.jpg"))

	rec, ok = rep.Find(src + "/b.pdf")
	require.True(t, ok)
	assert.Equal(t, report.Moved, rec.Outcome)
	assert.True(t, exists(t, fs, src+"/documents/b.pdf"))

	assert.Equal(t, 1, rep.Summary().Failed)
}

func TestRun_InvalidPolicy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")

	_, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.ConflictPolicy("merge"))
	var cfgErr *internal.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, exists(t, fs, src+"/a.jpg"))
}

func TestRun_SourceNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := New(fs, testRules(t), Options{}).Run(context.Background(), "/missing", internal.PolicySkip)
	var srcErr *internal.SourceNotFoundError
	require.ErrorAs(t, err, &srcErr)
	assert.True(t, internal.IsFatal(err))

	writeFile(t, fs, "/file.txt", "x")
	_, err = New(fs, testRules(t), Options{}).Run(context.Background(), "/file.txt", internal.PolicySkip)
	require.ErrorAs(t, err, &srcErr)
}

func TestRun_DryRunDoesNotMutate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "new")
	writeFile(t, fs, src+"/b.pdf", "pdf")
	writeFile(t, fs, src+"/images/a.jpg", "old")
	before := snapshot(t, fs, src)

	rep, err := New(fs, testRules(t), Options{DryRun: true}).Run(context.Background(), src, internal.PolicyRename)
	require.NoError(t, err)

	assert.Equal(t, before, snapshot(t, fs, src))
	assert.False(t, exists(t, fs, src+"/documents"))
	assert.Equal(t, 2, rep.Summary().Planned)

	rec, ok := rep.Find(src + "/a.jpg")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(src, "images", "a (1).jpg"), rec.Destination)
}

func TestRun_DryRunReservesPlannedNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a/photo.jpg", "a")
	writeFile(t, fs, src+"/b/photo.jpg", "b")
	writeFile(t, fs, src+"/c/photo.jpg", "c")

	planned, err := New(fs, testRules(t), Options{Recursive: true, DryRun: true}).Run(context.Background(), src, internal.PolicyRename)
	require.NoError(t, err)
	require.Equal(t, 3, planned.Summary().Planned)

	rep, err := New(fs, testRules(t), Options{Recursive: true}).Run(context.Background(), src, internal.PolicyRename)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Summary().Moved)

	for _, rec := range rep.Records() {
		want, ok := planned.Find(rec.Source)
		require.True(t, ok, rec.Source)
		assert.Equal(t, rec.Destination, want.Destination, "预览与实际运行的目标路径应一致")
	}
}

func TestRun_HiddenFilesIncludedByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/.env", "KEY=1")
	writeFile(t, fs, src+"/.photo.jpg", "jpg")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Len())
	assert.Equal(t, "KEY=1", readFile(t, fs, src+"/misc/.env"))
	assert.Equal(t, "jpg", readFile(t, fs, src+"/images/.photo.jpg"))
}

func TestRun_SkipHidden(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/.env", "KEY=1")
	writeFile(t, fs, src+"/a.jpg", "jpg")

	rep, err := New(fs, testRules(t), Options{SkipHidden: true}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Len())
	assert.True(t, exists(t, fs, src+"/.env"))
}

func TestRun_CopyModeKeepsSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")

	rep, err := New(fs, testRules(t), Options{Mode: internal.ModeCopy}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	assert.Equal(t, "jpg", readFile(t, fs, src+"/a.jpg"))
	assert.Equal(t, "jpg", readFile(t, fs, src+"/images/a.jpg"))
	assert.Equal(t, 1, rep.Summary().Moved)
}

func TestRun_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")
	writeFile(t, fs, src+"/b.pdf", "pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(fs, testRules(t), Options{}).Run(ctx, src, internal.PolicySkip)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)

	assert.Equal(t, 2, rep.Len())
	for _, rec := range rep.Records() {
		assert.Equal(t, report.Failed, rec.Outcome)
		assert.Equal(t, internal.ErrCancelled.Error(), rec.Reason)
	}
	assert.True(t, exists(t, fs, src+"/a.jpg"))
}

func TestRun_RecursiveSkipsCategoryFolders(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/nested/deep/x.jpg", "x")
	writeFile(t, fs, src+"/nested/y.pdf", "y")
	writeFile(t, fs, src+"/images/already.jpg", "old")

	rep, err := New(fs, testRules(t), Options{Recursive: true}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Len())
	assert.True(t, exists(t, fs, src+"/images/x.jpg"))
	assert.True(t, exists(t, fs, src+"/documents/y.pdf"))
	assert.True(t, exists(t, fs, src+"/images/already.jpg"))
	_, ok := rep.Find(src + "/images/already.jpg")
	assert.False(t, ok)
}

func TestRun_ParallelRenameNeverCollides(t *testing.T) {
	fs := afero.NewMemMapFs()
	const n = 20
	for i := 0; i < n; i++ {
		writeFile(t, fs, fmt.Sprintf("%s/dir%02d/photo.jpg", src, i), fmt.Sprintf("%d", i))
	}

	rep, err := New(fs, testRules(t), Options{Recursive: true, Workers: 4}).Run(context.Background(), src, internal.PolicyRename)
	require.NoError(t, err)

	require.Equal(t, n, rep.Len())
	destinations := make(map[string]bool)
	for _, rec := range rep.Records() {
		require.Equal(t, report.Moved, rec.Outcome, rec.Reason)
		require.False(t, destinations[rec.Destination], "duplicate destination %s", rec.Destination)
		destinations[rec.Destination] = true
	}

	files, err := afero.ReadDir(fs, src+"/images")
	require.NoError(t, err)
	assert.Len(t, files, n)
}

// faultyFs 让源文件的 Rename / Remove 返回指定错误，临时文件的操作照常进行
type faultyFs struct {
	afero.Fs
	renameErr error
	removeErr error
}

func isTemp(name string) bool {
	return strings.Contains(filepath.Base(name), internal.TempFileSuffix)
}

func (f faultyFs) Rename(oldname, newname string) error {
	if f.renameErr != nil && !isTemp(oldname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: f.renameErr}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f faultyFs) Remove(name string) error {
	if f.removeErr != nil && !isTemp(name) {
		return &os.PathError{Op: "remove", Path: name, Err: f.removeErr}
	}
	return f.Fs.Remove(name)
}

func TestRun_CrossDeviceFallbackCopiesAndRemoves(t *testing.T) {
	fs := faultyFs{Fs: afero.NewMemMapFs(), renameErr: syscall.EXDEV}
	writeFile(t, fs, src+"/a.jpg", "payload")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Summary().Moved)
	assert.Equal(t, "payload", readFile(t, fs, src+"/images/a.jpg"))
	assert.False(t, exists(t, fs, src+"/a.jpg"))

	files, err := afero.ReadDir(fs, src+"/images")
	require.NoError(t, err)
	assert.Len(t, files, 1, "不应留下临时文件")
}

func TestRun_RenameErrorOtherThanCrossDeviceDoesNotCopy(t *testing.T) {
	fs := faultyFs{Fs: afero.NewMemMapFs(), renameErr: syscall.EPERM, removeErr: syscall.EPERM}
	writeFile(t, fs, src+"/a.jpg", "payload")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)

	require.Equal(t, 1, rep.Summary().Failed)
	assert.Equal(t, "payload", readFile(t, fs, src+"/a.jpg"))
	assert.False(t, exists(t, fs, src+"/images/a.jpg"), "失败的条目不应留下目标文件")

	// 再次运行时条目仍然失败，而不是被当作已整理的文件跳过
	rep, err = New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary().Failed)
	assert.Equal(t, 0, rep.Summary().Skipped)
}

func TestRun_CrossDeviceRemoveFailureLeavesNoCopy(t *testing.T) {
	fs := faultyFs{Fs: afero.NewMemMapFs(), renameErr: syscall.EXDEV, removeErr: syscall.EACCES}
	writeFile(t, fs, src+"/a.jpg", "new")
	writeFile(t, fs, src+"/images/a.jpg", "old")

	rep, err := New(fs, testRules(t), Options{}).Run(context.Background(), src, internal.PolicyOverwrite)
	require.NoError(t, err)

	require.Equal(t, 1, rep.Summary().Failed)
	assert.Equal(t, "new", readFile(t, fs, src+"/a.jpg"))
	assert.Equal(t, "old", readFile(t, fs, src+"/images/a.jpg"), "已有目标文件不应被破坏")

	files, err := afero.ReadDir(fs, src+"/images")
	require.NoError(t, err)
	assert.Len(t, files, 1, "不应留下临时文件")
}

func TestRun_SourceLocked(t *testing.T) {
	lockDir := t.TempDir()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, src+"/a.jpg", "jpg")

	unlock, err := acquireLock(lockDir, src)
	require.NoError(t, err)
	defer unlock()

	_, err = New(fs, testRules(t), Options{LockDir: lockDir}).Run(context.Background(), src, internal.PolicySkip)
	require.ErrorIs(t, err, internal.ErrSourceLocked)
	assert.True(t, exists(t, fs, src+"/a.jpg"))
}

func TestRun_OsFs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("jpg"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes"), []byte("text"), 0644))

	rep, err := Organize(context.Background(), root, testRules(t), internal.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Summary().Moved)

	_, err = os.Stat(filepath.Join(root, "images", "a.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "misc", "notes"))
	assert.NoError(t, err)
}

func TestOrganize_NilRules(t *testing.T) {
	_, err := Organize(context.Background(), t.TempDir(), nil, internal.PolicySkip)
	var cfgErr *internal.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSplitName(t *testing.T) {
	testCases := []struct {
		name, base, ext string
	}{
		{"a.jpg", "a", ".jpg"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{".bashrc", ".bashrc", ""},
		{"noext", "noext", ""},
	}
	for _, tc := range testCases {
		base, ext := splitName(tc.name)
		assert.Equal(t, tc.base, base, tc.name)
		assert.Equal(t, tc.ext, ext, tc.name)
	}
}
