package filecopy

// Outcome is the result of one strategy attempt and drives fallback in
// Engine.Copy. Only the three unsupported-style outcomes cause the next
// strategy to be tried.
type Outcome int

const (
	// Completed means every byte of the source was written to the destination.
	Completed Outcome = iota
	// UnsupportedMechanism means the kernel lacks the mechanism entirely. The
	// strategy disables itself process-wide so we do not keep issuing a
	// syscall that can never succeed.
	UnsupportedMechanism
	// UnsupportedForTheseParameters means this particular descriptor pair
	// cannot use the mechanism (crossing file system boundaries is the usual
	// cause) but another pair might.
	UnsupportedForTheseParameters
	// WouldBlock means the mechanism would have blocked where non-blocking
	// behavior is required. Treated like a parameter problem: fall back for
	// this call only.
	WouldBlock
	// Cancelled means the cancel token was observed set. No further
	// strategies are attempted.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case UnsupportedMechanism:
		return "unsupported mechanism"
	case UnsupportedForTheseParameters:
		return "unsupported for these parameters"
	case WouldBlock:
		return "would block"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
