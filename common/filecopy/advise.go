package filecopy

import (
	"os"

	"golang.org/x/sys/unix"
)

// advise tells the kernel the whole source file is about to be read once,
// sequentially, so it can tune read-ahead and drop pages behind us. The hints
// are purely advisory: a kernel or file system that ignores them changes
// nothing about copy correctness, so errors are discarded.
func advise(src *os.File) {
	fd := int(src.Fd())
	// Offset/length of 0/0 covers the full extent. Each advice value is a
	// separate fadvise call, they are not flags that can be OR-ed together.
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_NOREUSE)
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_WILLNEED)
}
