// Package attrs implements the optional metadata views a Linux file system
// may expose on top of the basic POSIX attributes: user extended attributes,
// the emulated DOS attribute view stored in the user.DOSATTRIB extended
// attribute (the same convention Samba uses), and the kernel inode flags
// reached through the FS_IOC_GETFLAGS/SETFLAGS ioctls.
//
// Whether a given file system actually supports these views is negotiated at
// runtime: operations against file systems without xattr support fail with
// ENOTSUP, which callers that copy attributes best-effort are expected to
// tolerate (CopyAll already does).
package attrs
