package filesystem

// Statfs magic numbers for the file systems we can name, from linux/magic.h
// (see also man 2 statfs). The mount table usually reports the type label
// directly; the magic is what identifies the type when all we have is a path.
const (
	magicBtrfs     = 0x9123683e
	magicCgroup2   = 0x63677270
	magicCifs      = 0xff534d42
	magicExt       = 0xef53 // ext2, ext3 and ext4 share one magic
	magicF2fs      = 0xf2f52010
	magicFuse      = 0x65735546
	magicNfs       = 0x6969
	magicOverlayfs = 0x794c7630
	magicProc      = 0x9fa0
	magicRamfs     = 0x858458f6
	magicSmb2      = 0xfe534d42
	magicSquashfs  = 0x73717368
	magicSysfs     = 0x62656572
	magicTmpfs     = 0x01021994
	magicVfat      = 0x4d44
	magicXfs       = 0x58465342
	magicZfs       = 0x2fc12fc1
)

// TypeNameFromMagic maps a statfs magic number to the conventional file system
// type name. Unknown magics produce "unknown" rather than an error since the
// name is informational.
func TypeNameFromMagic(magic int64) string {
	switch magic {
	case magicBtrfs:
		return "btrfs"
	case magicCgroup2:
		return "cgroup2"
	case magicCifs:
		return "cifs"
	case magicExt:
		return "ext4"
	case magicF2fs:
		return "f2fs"
	case magicFuse:
		return "fuseblk"
	case magicNfs:
		return "nfs"
	case magicOverlayfs:
		return "overlay"
	case magicProc:
		return "proc"
	case magicRamfs:
		return "ramfs"
	case magicSmb2:
		return "smb2"
	case magicSquashfs:
		return "squashfs"
	case magicSysfs:
		return "sysfs"
	case magicTmpfs:
		return "tmpfs"
	case magicVfat:
		return "vfat"
	case magicXfs:
		return "xfs"
	case magicZfs:
		return "zfs"
	default:
		return "unknown"
	}
}

// NetworkFileSystem reports whether the magic belongs to a network backed file
// system. FUSE mounts may or may not be network backed, they are reported as
// local here.
func NetworkFileSystem(magic int64) bool {
	switch magic {
	case magicNfs, magicCifs, magicSmb2:
		return true
	default:
		return false
	}
}
