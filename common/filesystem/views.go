package filesystem

import "sync"

// The platform independent views every provider offers: basic file
// attributes, file ownership, and POSIX permissions.
var baseViews = []string{"basic", "owner", "posix"}

// supportedViews is computed at most once per process. sync.OnceValue gives
// the initialize-exactly-once guarantee under concurrent first access and the
// happens-before edge that makes the slice safe to read without locking, and
// every call returns the same slice so callers may compare by identity. The
// slice must never be mutated.
var supportedViews = sync.OnceValue(func() []string {
	views := make([]string, 0, len(baseViews)+2)
	views = append(views, baseViews...)
	// Linux specific additions: the emulated DOS attribute view and the user
	// extended attribute view. Whether a given file store can actually serve
	// them is probed per store, see FileStore.SupportsView.
	views = append(views, "dos", "user")
	return views
})

// SupportedViews returns the names of the metadata views supported on this
// platform. The returned slice is shared and read-only.
func SupportedViews() []string {
	return supportedViews()
}
