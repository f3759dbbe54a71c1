package filesystem

import (
	"errors"
	"fmt"

	"github.com/driftfs/drift-go/common/mounttable"
	"golang.org/x/sys/unix"
)

// FileStore describes the storage backing one mount table entry, combining
// the decoded entry with live statfs information. A FileStore is a snapshot:
// it is built fresh from an entry and never updated afterwards.
type FileStore struct {
	Entry mounttable.MountEntry

	// Capacity in bytes. AvailableBytes is what an unprivileged caller can
	// use, FreeBytes includes the blocks reserved for root.
	TotalBytes     uint64
	FreeBytes      uint64
	AvailableBytes uint64

	TotalInodes uint64
	FreeInodes  uint64

	// Magic is the raw statfs file system magic number.
	Magic int64
	// ReadOnly is set if either the mount options or the superblock flags say
	// the store cannot be written.
	ReadOnly bool
}

// NewFileStore stats the mount target of the given entry and returns the
// resulting store. Fails if the target cannot be statted, e.g. the mount went
// away since the table was read.
func NewFileStore(entry mounttable.MountEntry) (*FileStore, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(entry.Target, &stat); err != nil {
		return nil, fmt.Errorf("unable to stat file store at %s: %w", entry.Target, err)
	}
	bsize := uint64(stat.Bsize)
	return &FileStore{
		Entry:          entry,
		TotalBytes:     stat.Blocks * bsize,
		FreeBytes:      stat.Bfree * bsize,
		AvailableBytes: stat.Bavail * bsize,
		TotalInodes:    stat.Files,
		FreeInodes:     stat.Ffree,
		Magic:          stat.Type,
		ReadOnly:       entry.ReadOnly() || stat.Flags&unix.ST_RDONLY != 0,
	}, nil
}

// Name returns the device or pseudo device backing the store.
func (s *FileStore) Name() string {
	return s.Entry.Source
}

// Type returns the file system type label, preferring what the mount table
// reported and falling back to the magic number when the label is missing or
// unhelpful (e.g. "none").
func (s *FileStore) Type() string {
	if s.Entry.FSType != "" && s.Entry.FSType != "none" {
		return s.Entry.FSType
	}
	return TypeNameFromMagic(s.Magic)
}

// SupportsView reports whether the named metadata view is usable on this
// store. The base views are always usable; the dos and user views both ride
// on extended attributes, which not every file system exposes.
func (s *FileStore) SupportsView(view string) bool {
	switch view {
	case "basic", "owner", "posix":
		return true
	case "dos", "user":
		return s.supportsXattrs()
	default:
		return false
	}
}

// supportsXattrs probes the mount target with a zero-length listxattr. The
// call itself is cheap and file systems without xattr support fail it with
// ENOTSUP.
func (s *FileStore) supportsXattrs() bool {
	_, err := unix.Listxattr(s.Entry.Target, nil)
	return !errors.Is(err, unix.ENOTSUP)
}
