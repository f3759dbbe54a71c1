// Package filecopy moves file contents between open descriptors as fast as the
// running kernel allows.
//
// A copy is attempted through an ordered list of strategies: a kernel assisted
// direct copy (copy_file_range, which avoids round-tripping data through user
// space), a buffered read/write loop primed with read-ahead advice, and
// finally a generic fallback the caller may inject. Falling back is driven
// purely by what the kernel reports as unsupported, never by file size or type
// heuristics, and never happens once a strategy has moved bytes.
//
// All strategies poll a caller owned CancelToken between bounded chunks, so a
// second goroutine can abort an in-flight copy with a latency bounded by one
// chunk transfer rather than the total file size. Cancellation performs no
// rollback: the destination is left holding an undefined prefix of the source
// and the caller is responsible for discarding it.
package filecopy
