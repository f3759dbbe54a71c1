package filecopy

import (
	"fmt"
	"io"
	"os"
)

// bufferedCopyChunk is the transfer size of the user space read/write loop.
// It also bounds cancellation latency to one chunk.
const bufferedCopyChunk = 32 * 1024

// BufferedCopy copies src to dst through a user space buffer after priming
// the kernel with read-ahead advice. It works against any pair of regular
// descriptors and so never reports an unsupported outcome.
func BufferedCopy(dst, src *os.File, token *CancelToken) (Outcome, error) {
	advise(src)

	buf := make([]byte, bufferedCopyChunk)
	for {
		if token.Cancelled() {
			return Cancelled, nil
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return Completed, fmt.Errorf("error writing to destination: %w", werr)
			}
		}
		if err == io.EOF {
			return Completed, nil
		}
		if err != nil {
			return Completed, fmt.Errorf("error reading from source: %w", err)
		}
	}
}

// GenericCopy is the fallback of last resort, a plain io.Copy with the same
// signature as the specialized strategies so the engine can treat all tiers
// uniformly. io.Copy transfers everything in one call, so the token is only
// honored if set before the transfer starts.
func GenericCopy(dst, src *os.File, token *CancelToken) (Outcome, error) {
	if token.Cancelled() {
		return Cancelled, nil
	}
	if _, err := io.Copy(dst, src); err != nil {
		return Completed, fmt.Errorf("error copying source to destination: %w", err)
	}
	return Completed, nil
}
