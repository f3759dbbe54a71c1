package filecopy

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrCancelled is returned by Engine.Copy when the cancel token was
	// observed set. It is a distinct outcome rather than a failure: nothing is
	// retried and no further strategies run, but the destination holds an
	// undefined prefix the caller should discard.
	ErrCancelled = errors.New("copy cancelled by caller")
	// ErrNoUsableStrategy is returned if every configured strategy reported
	// itself unsupported. Cannot happen with the default strategy list since
	// the buffered loop handles any regular descriptor pair.
	ErrNoUsableStrategy = errors.New("no copy strategy supported the given descriptors")
)

// Strategy is one way to move all remaining bytes from src to dst. A strategy
// either completes, reports why it cannot run (via an unsupported Outcome),
// reports cancellation, or fails with a real error. Strategies must poll the
// token at a bounded interval while transferring.
type Strategy func(dst, src *os.File, token *CancelToken) (Outcome, error)

// Engine runs an ordered list of copy strategies. The zero engine is not
// usable; construct with New.
type Engine struct {
	strategies []Strategy
}

// New returns an engine trying the kernel direct copy first, then the
// advisory-hinted buffered loop, then the provided fallback. A nil fallback
// selects GenericCopy. Injecting the fallback keeps the generic platform copy
// path (which lives with the caller, not here) composable with the kernel
// specific tiers.
func New(fallback Strategy) *Engine {
	if fallback == nil {
		fallback = GenericCopy
	}
	return &Engine{strategies: []Strategy{DirectCopy, BufferedCopy, fallback}}
}

// NewWithStrategies returns an engine with an explicit strategy order. Used by
// tests and callers that need to exclude a tier entirely.
func NewWithStrategies(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// Copy moves all bytes from src to dst. Strategies are tried in order; a
// strategy that reports an unsupported outcome hands over to the next one, a
// strategy that made progress either finishes the job or fails the copy. The
// token may be nil when cancellation is not needed.
func (e *Engine) Copy(dst, src *os.File, token *CancelToken) error {
	for _, strategy := range e.strategies {
		outcome, err := strategy(dst, src, token)
		if err != nil {
			return err
		}
		switch outcome {
		case Completed:
			return nil
		case Cancelled:
			return ErrCancelled
		case UnsupportedMechanism, UnsupportedForTheseParameters, WouldBlock:
			continue
		default:
			return fmt.Errorf("copy strategy returned unknown outcome %d", outcome)
		}
	}
	return ErrNoUsableStrategy
}
