package filecopy

import "sync/atomic"

// CancelToken requests cancellation of one in-flight copy. The copying
// goroutine polls it between chunks while any other goroutine may call
// Cancel(); the single word of atomic state gives the required happens-before
// edge without locking. A token must not be shared by two copies running at
// the same time, but a zero value token is ready to use and a nil token is
// treated as "never cancelled" so one-shot callers can pass nil.
type CancelToken struct {
	cancelled atomic.Uint32
}

// Cancel requests that the copy polling this token stop at its next poll
// point. Safe to call from any goroutine, any number of times.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(1)
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.cancelled.Load() != 0
}
