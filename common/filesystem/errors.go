package filesystem

import "errors"

var (
	ErrInitProvider = errors.New("unable to initialize a file system provider from the specified path")
	ErrNotADir      = errors.New("the specified mount point is not a directory")
)
