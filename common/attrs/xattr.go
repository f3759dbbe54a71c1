package attrs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// The VFS imposes a 255-byte limit on attribute names.
	// Ref: https://man7.org/linux/man-pages/man7/xattr.7.html
	maxXattrNameSize = 255
	// When reading attribute values, a buffer of this size is allocated first
	// then dynamically grown as needed.
	initialXattrValBufferSize = 1024
)

// None of the operations in this file follow symlinks: attributes are read
// from and written to the link itself so copying a tree cannot be confused by
// links pointing outside of it.

// List returns the extended attribute names present on path.
func List(path string) ([]string, error) {
	// Query the required size first, the list can exceed any fixed buffer.
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing xattrs for path %s: %w", path, err)
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := unix.Llistxattr(path, buf)
	if err != nil {
		return nil, fmt.Errorf("error listing xattrs for path %s: %w", path, err)
	}
	return splitNames(buf[:n]), nil
}

// Get returns the value of the named extended attribute.
func Get(path, name string) ([]byte, error) {
	valBuf := make([]byte, initialXattrValBufferSize)
	for {
		n, err := unix.Lgetxattr(path, name, valBuf)
		if errors.Is(err, unix.ERANGE) {
			// The value grew past our buffer, ask the kernel how big it is now.
			size, err := unix.Lgetxattr(path, name, nil)
			if err != nil {
				return nil, fmt.Errorf("error getting size of xattr %s: %w", name, err)
			}
			valBuf = make([]byte, size)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error getting xattr %s: %w", name, err)
		}
		return valBuf[:n], nil
	}
}

// Set writes the value of the named extended attribute, creating or replacing
// it as needed.
func Set(path, name string, value []byte) error {
	if err := unix.Lsetxattr(path, name, value, 0); err != nil {
		return fmt.Errorf("error setting xattr %s: %w", name, err)
	}
	return nil
}

// Remove deletes the named extended attribute.
func Remove(path, name string) error {
	if err := unix.Lremovexattr(path, name); err != nil {
		return fmt.Errorf("error removing xattr %s: %w", name, err)
	}
	return nil
}

// CopyAll copies every extended attribute from srcPath to dstPath. If there
// are no xattrs, or the file system does not support them, no error is
// returned: attribute duplication after a content copy is best-effort on
// stores that cannot serve the view.
func CopyAll(srcPath, dstPath string) error {
	buf := make([]byte, maxXattrNameSize)
	n, err := unix.Llistxattr(srcPath, buf)
	if err != nil {
		if errors.Is(err, unix.ENOTSUP) {
			return nil
		}
		if errors.Is(err, unix.ERANGE) {
			// More attributes than fit the conservative first buffer.
			size, err := unix.Llistxattr(srcPath, nil)
			if err != nil {
				return fmt.Errorf("error getting xattrs for path: %w", err)
			}
			buf = make([]byte, size)
			if n, err = unix.Llistxattr(srcPath, buf); err != nil {
				return fmt.Errorf("error getting xattrs for path: %w", err)
			}
		} else {
			return fmt.Errorf("error getting xattrs for path: %w", err)
		}
	}
	if n == 0 {
		return nil
	}

	// Allocate a buffer for xattr values here, grown as needed per attribute.
	valBuf := make([]byte, initialXattrValBufferSize)
	for _, name := range splitNames(buf[:n]) {
		// Query the required buffer size and grow if needed:
		size, err := unix.Lgetxattr(srcPath, name, nil)
		if err != nil {
			return fmt.Errorf("error getting size of xattr %s: %w", name, err)
		}
		if size > len(valBuf) {
			valBuf = make([]byte, size)
		}
		vlen, err := unix.Lgetxattr(srcPath, name, valBuf)
		if err != nil {
			return fmt.Errorf("error getting xattr %s: %w", name, err)
		}
		if err := unix.Lsetxattr(dstPath, name, valBuf[:vlen], 0); err != nil {
			return fmt.Errorf("error setting xattr %s (value: %s): %w", name, valBuf[:vlen], err)
		}
	}
	return nil
}

// splitNames turns the kernel's NUL separated name list into strings.
func splitNames(list []byte) []string {
	var names []string
	start := 0
	for i, b := range list {
		if b == 0 {
			if i > start {
				names = append(names, string(list[start:i]))
			}
			start = i + 1
		}
	}
	return names
}
