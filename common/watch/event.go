package watch

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a single file system change. SeqID is assigned by the service in
// arrival order and is strictly increasing for the lifetime of the service.
type Event struct {
	SeqID uint64
	Path  string
	Op    fsnotify.Op
	Time  time.Time
}

func (e *Event) String() string {
	return fmt.Sprintf("%d %s %s", e.SeqID, e.Op, e.Path)
}
