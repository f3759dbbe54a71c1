package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftfs/drift-go/common/filecopy"
	"github.com/spf13/afero"
)

// MockFSIdentifier can be used in configuration to request a mock file system
// instead of a real mount point.
const MockFSIdentifier = "mock"

// NewMockFS returns an in-memory Provider. Operations happen against an afero
// MemMapFs, so anything without an in-memory equivalent (extended attributes,
// ownership) is a no-op that still satisfies the Provider contract.
func NewMockFS() Provider {
	return MockFS{Fs: afero.NewMemMapFs()}
}

type MockFS struct {
	Fs afero.Fs
}

func (m MockFS) GetMountPath() string {
	return ""
}

func (m MockFS) GetRelativePathWithinMount(path string) (string, error) {
	return filepath.Clean("/" + strings.TrimPrefix(path, "/")), nil
}

func (m MockFS) Stat(name string) (os.FileInfo, error) {
	return m.Fs.Stat(name)
}

func (m MockFS) Lstat(name string) (os.FileInfo, error) {
	// afero has no lstat equivalent and MemMapFs has no symlinks anyway.
	return m.Fs.Stat(name)
}

func (m MockFS) Open(name string) (io.ReadCloser, error) {
	return m.Fs.Open(name)
}

func (m MockFS) CreatePreallocatedFile(name string, size int64, overwrite bool) error {
	if !overwrite {
		if _, err := m.Fs.Stat(name); err == nil {
			return os.ErrExist
		}
	}
	file, err := m.Fs.Create(name)
	if err != nil {
		return err
	}
	if err := file.Truncate(size); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}
	return file.Close()
}

func (m MockFS) CreateDir(path string, mode uint32) error {
	return m.Fs.MkdirAll(path, os.FileMode(mode))
}

func (m MockFS) Remove(name string) error {
	return m.Fs.Remove(name)
}

func (m MockFS) Readlink(name string) (string, error) {
	return "", fmt.Errorf("symlinks are not supported by the mock file system")
}

// The Lexicographically option is ignored, afero.Walk already visits entries
// in sorted order.
func (m MockFS) WalkDir(path string, fn fs.WalkDirFunc, opts ...WalkOption) error {
	return afero.Walk(m.Fs, path, func(path string, info os.FileInfo, err error) error {
		var entry fs.DirEntry
		if info != nil {
			entry = fs.FileInfoToDirEntry(info)
		}
		return fn(path, entry, err)
	})
}

func (m MockFS) CopyContentsToFile(srcPath, dstPath string, token *filecopy.CancelToken) error {
	if token.Cancelled() {
		return filecopy.ErrCancelled
	}
	srcFile, err := m.Fs.Open(srcPath)
	if err != nil {
		return fmt.Errorf("error opening source path: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := m.Fs.OpenFile(dstPath, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("error opening destination path: %w", err)
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		if closeErr := dstFile.Close(); closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}
	return dstFile.Close()
}

func (m MockFS) CopyXAttrsToFile(srcPath, dstPath string) error {
	// MemMapFs has no extended attributes, matching a file system mounted
	// without xattr support.
	return nil
}

func (m MockFS) CopyOwnerAndMode(fromStat fs.FileInfo, dstPath string) error {
	return m.Fs.Chmod(dstPath, fromStat.Mode())
}

func (m MockFS) CopyTimestamps(fromStat fs.FileInfo, dstPath string) error {
	return m.Fs.Chtimes(dstPath, time.Now(), fromStat.ModTime())
}

func (m MockFS) SupportedViews() []string {
	return SupportedViews()
}
