package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/driftfs/drift-go/common/attrs"
	"github.com/driftfs/drift-go/common/filecopy"
	"golang.org/x/sys/unix"
)

// Provider is the interface file system operations go through. All paths are
// relative to the mount point the Provider was initialized with. The use of an
// interface is mostly to allow operations to be mocked for tests, but it also
// keeps the kernel-specific pieces swappable should another platform adapter
// ever be added.
type Provider interface {
	// Returns the path where the file system is mounted.
	GetMountPath() string
	// Given an absolute or relative path computes the relative path of the
	// file/directory within the mount point, prefixed with "/". If the
	// provided path is not prefixed with the mount point it is presumed to
	// already be relative and returned as is (possibly with '/' added).
	GetRelativePathWithinMount(path string) (string, error)
	// Stat follows symbolic links (use Lstat if that is not wanted).
	Stat(name string) (os.FileInfo, error)
	Lstat(name string) (os.FileInfo, error)
	// Opens the named file for reading. The caller must close it.
	Open(name string) (io.ReadCloser, error)
	// Creates a file at the specified path returning an error if the file
	// already exists, unless overwrite is true, then the file will be zeroed
	// and overwritten. The new file is extended to the specified size with
	// truncate rather than by writing zeros, so it is not safe to rely on
	// this to securely wipe an existing file.
	CreatePreallocatedFile(name string, size int64, overwrite bool) error
	// Recursively create any missing portion of the directory structure.
	CreateDir(path string, mode uint32) error
	Remove(name string) error
	Readlink(name string) (string, error)
	// A wrapper around filepath.WalkDir allowing it to be used with relative
	// paths inside the mount. Paths handed to fn may be absolute and should be
	// sanitized with GetRelativePathWithinMount() if needed. By default entries
	// are walked in the standard library's order, use Lexicographically(true)
	// to walk in byte-wise lexicographical order instead.
	WalkDir(path string, fn fs.WalkDirFunc, opts ...WalkOption) error
	// CopyContentsToFile copies all bytes from srcPath into the already
	// created dstPath using the fastest mechanism the kernel supports. The
	// token may be nil; if cancelled mid-copy filecopy.ErrCancelled is
	// returned and dstPath holds an undefined prefix of the source.
	CopyContentsToFile(srcPath, dstPath string, token *filecopy.CancelToken) error
	// CopyXAttrsToFile copies user extended attributes from srcPath to
	// dstPath. No error is returned if there are none or the file system has
	// no xattr support.
	CopyXAttrsToFile(srcPath, dstPath string) error
	CopyOwnerAndMode(fromStat fs.FileInfo, dstPath string) error
	// CopyTimestamps sets the atime/mtime in fromStat on dstPath.
	CopyTimestamps(fromStat fs.FileInfo, dstPath string) error
	// SupportedViews returns the process-wide set of metadata view names, see
	// SupportedViews at package level.
	SupportedViews() []string
}

// NewFromMountPoint accepts an exact path where a file system is mounted and
// returns a Provider for it. If you only know a path somewhere inside the
// mount point, use NewFromPath().
func NewFromMountPoint(path string) (Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path given", ErrInitProvider)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitProvider, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADir, path)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("unable to determine the file system type for path %s using statfs: %w", path, err)
	}
	return Linux{
		MountPoint: filepath.Clean(path),
		Type:       TypeNameFromMagic(stat.Type),
		engine:     filecopy.New(nil),
	}, nil
}

// NewFromPath automatically initializes a Provider from the provided path.
// This works by walking the path upward to find the mount point (the first
// parent on a different device) then using that path with NewFromMountPoint().
// The path will be traversed regardless of the existence of the files or
// directories until a mounted file system is found.
func NewFromPath(path string) (Provider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		currentStat, err := os.Lstat(absPath)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return nil, fmt.Errorf("%s: %w", path, ErrInitProvider)
			}
			parentPath := filepath.Dir(absPath)
			if parentPath == absPath {
				return nil, fmt.Errorf("%s: %w", path, ErrInitProvider)
			}
			absPath = parentPath
			continue
		}
		parentPath := filepath.Dir(absPath)
		if parentPath == absPath {
			// Reached the root which is itself a mount point.
			return NewFromMountPoint(absPath)
		}
		parentStat, err := os.Lstat(parentPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInitProvider, err)
		}
		if currentStat.Sys().(*syscall.Stat_t).Dev != parentStat.Sys().(*syscall.Stat_t).Dev {
			return NewFromMountPoint(absPath)
		}
		// Otherwise move up a level.
		absPath = parentPath
	}
}

// Linux is the Provider implementation for a locally mounted file system on a
// Linux kernel.
type Linux struct {
	MountPoint string
	// Type is the file system type name detected from the statfs magic number
	// when the Provider was initialized (e.g. ext4, xfs, tmpfs).
	Type string

	engine *filecopy.Engine
}

func (p Linux) GetMountPath() string {
	return p.MountPoint
}

func (p Linux) GetRelativePathWithinMount(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean("/" + strings.TrimPrefix(absPath, p.MountPoint)), nil
}

func (p Linux) Stat(name string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(p.MountPoint, name))
}

func (p Linux) Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(filepath.Join(p.MountPoint, name))
}

func (p Linux) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(p.MountPoint, name))
}

// Not all file systems support fallocate() so this uses truncate() to extend
// the file instead. The result is effectively a sparse file (ls shows the
// specified size, du shows 0) so there is no guarantee the disk won't run out
// of space when the file is later written.
func (p Linux) CreatePreallocatedFile(name string, size int64, overwrite bool) error {
	flags := os.O_RDWR | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(filepath.Join(p.MountPoint, name), flags, 0666)
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

func (p Linux) CreateDir(path string, mode uint32) error {
	if err := os.MkdirAll(filepath.Join(p.MountPoint, path), os.FileMode(mode)); err != nil {
		return fmt.Errorf("error creating directories for path (%s): %w", path, err)
	}
	return nil
}

func (p Linux) Remove(name string) error {
	return os.Remove(filepath.Join(p.MountPoint, name))
}

func (p Linux) Readlink(name string) (string, error) {
	return os.Readlink(filepath.Join(p.MountPoint, name))
}

func (p Linux) WalkDir(path string, fn fs.WalkDirFunc, opts ...WalkOption) error {
	args := &WalkOptions{}
	for _, opt := range opts {
		opt(args)
	}
	if args.Lexicographically {
		return WalkDirLexicographically(filepath.Join(p.MountPoint, path), fn)
	}
	return filepath.WalkDir(filepath.Join(p.MountPoint, path), fn)
}

func (p Linux) CopyContentsToFile(srcPath, dstPath string, token *filecopy.CancelToken) error {
	srcFile, err := os.Open(filepath.Join(p.MountPoint, srcPath))
	if err != nil {
		return fmt.Errorf("error opening source path: %w", err)
	}
	// Handling a potential error when closing dstFile is important because
	// data might be lost if it is cached in memory and unable to be flushed
	// out completely when the file is closed. srcFile is read-only so it is
	// closed via defer.
	defer srcFile.Close()

	dstFile, err := os.OpenFile(filepath.Join(p.MountPoint, dstPath), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("error opening destination path: %w", err)
	}

	if err := p.engine.Copy(dstFile, srcFile, token); err != nil {
		if closeErr := dstFile.Close(); closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}
	return dstFile.Close()
}

func (p Linux) CopyXAttrsToFile(srcPath, dstPath string) error {
	return attrs.CopyAll(filepath.Join(p.MountPoint, srcPath), filepath.Join(p.MountPoint, dstPath))
}

func (p Linux) CopyOwnerAndMode(fromStat fs.FileInfo, dstPath string) error {
	dstPath = filepath.Join(p.MountPoint, dstPath)

	linuxStat, ok := fromStat.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("unable to cast FileInfo to syscall.Stat_t (is the underlying OS Linux?)")
	}

	// Change ownership then the mode otherwise there would be a brief security
	// issue if suid/sgid bits are set.
	if err := os.Chown(dstPath, int(linuxStat.Uid), int(linuxStat.Gid)); err != nil {
		return fmt.Errorf("error changing ownership on destination path: %w", err)
	}
	if err := os.Chmod(dstPath, fromStat.Mode()); err != nil {
		return fmt.Errorf("error changing mode on destination path: %w", err)
	}
	return nil
}

func (p Linux) CopyTimestamps(fromStat fs.FileInfo, dstPath string) error {
	dstPath = filepath.Join(p.MountPoint, dstPath)

	linuxStat, ok := fromStat.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("unable to cast FileInfo to syscall.Stat_t (is the underlying OS Linux?)")
	}

	atime := time.Unix(linuxStat.Atim.Sec, linuxStat.Atim.Nsec)
	mtime := time.Unix(linuxStat.Mtim.Sec, linuxStat.Mtim.Nsec)

	// os.Chtimes does not work for symlinks because it updates the timestamps
	// on the file the link points at, so use UtimesNanoAt for those. It is not
	// used for regular files too because it does not preserve the change time.
	if fromStat.Mode()&os.ModeSymlink != 0 {
		times := [2]unix.Timespec{
			unix.NsecToTimespec(atime.UnixNano()),
			unix.NsecToTimespec(mtime.UnixNano()),
		}
		if err := unix.UtimesNanoAt(unix.AT_FDCWD, dstPath, times[:], unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return fmt.Errorf("failed to update timestamps: %w", err)
		}
		return nil
	}
	if err := os.Chtimes(dstPath, atime, mtime); err != nil {
		return fmt.Errorf("error copying timestamps to destination path: %w", err)
	}
	return nil
}

func (p Linux) SupportedViews() []string {
	return SupportedViews()
}
