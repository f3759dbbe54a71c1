package filecopy

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// directCopyChunk bounds a single copy_file_range request so the cancel token
// is polled at least once per chunk even for huge files.
const directCopyChunk = 1 << 20

// directCopyDisabled latches once the kernel reports the syscall itself is
// missing. Checked before every attempt so a process never issues more than
// one copy_file_range that fails with ENOSYS.
var directCopyDisabled atomic.Bool

// DirectCopy copies src to dst in-kernel with copy_file_range, using the
// current file offsets of both descriptors. It is the fastest strategy when
// available because data never crosses into user space.
func DirectCopy(dst, src *os.File, token *CancelToken) (Outcome, error) {
	if directCopyDisabled.Load() {
		return UnsupportedMechanism, nil
	}
	advise(src)

	var copied int64
	for {
		if token.Cancelled() {
			return Cancelled, nil
		}
		n, err := unix.CopyFileRange(int(src.Fd()), nil, int(dst.Fd()), nil, directCopyChunk, 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return directCopyError(err, copied)
		}
		if n == 0 {
			// Source exhausted.
			return Completed, nil
		}
		copied += int64(n)
	}
}

// directCopyError maps a copy_file_range errno to an Outcome. Unsupported
// style errnos only translate into fallback before any bytes have moved:
// falling back on partial progress would re-copy from the current offsets into
// a destination of unknown state, so after progress they are real errors.
func directCopyError(err error, copied int64) (Outcome, error) {
	switch {
	case errors.Is(err, unix.ENOSYS):
		directCopyDisabled.Store(true)
		return UnsupportedMechanism, nil
	case errors.Is(err, unix.EXDEV), errors.Is(err, unix.EINVAL), errors.Is(err, unix.EBADF),
		errors.Is(err, unix.ETXTBSY), errors.Is(err, unix.EPERM), errors.Is(err, unix.EOPNOTSUPP):
		if copied > 0 {
			return Completed, fmt.Errorf("direct copy failed after transferring %d bytes: %w", copied, err)
		}
		return UnsupportedForTheseParameters, nil
	case errors.Is(err, unix.EAGAIN):
		if copied > 0 {
			return Completed, fmt.Errorf("direct copy would block after transferring %d bytes: %w", copied, err)
		}
		return WouldBlock, nil
	default:
		return Completed, fmt.Errorf("direct copy failed: %w", err)
	}
}
