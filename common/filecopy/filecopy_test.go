package filecopy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPattern returns size bytes of deterministic, non-repeating-ish content
// so offset mistakes show up as comparison failures.
func testPattern(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i*7 + i>>8)
	}
	return buf
}

func openPair(t *testing.T, contents []byte) (dst, src *os.File) {
	t.Helper()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(srcPath, contents, 0644))
	src, err := os.Open(srcPath)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	dst, err = os.OpenFile(filepath.Join(dir, "dst"), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { dst.Close() })
	return dst, src
}

func readBack(t *testing.T, f *os.File) []byte {
	t.Helper()
	contents, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return contents
}

// fakeStrategy returns a Strategy with a fixed result that records each call.
func fakeStrategy(calls *[]string, name string, outcome Outcome, err error) Strategy {
	return func(dst, src *os.File, token *CancelToken) (Outcome, error) {
		*calls = append(*calls, name)
		return outcome, err
	}
}

func TestEngineFallsBackOnUnsupported(t *testing.T) {
	for _, trigger := range []Outcome{UnsupportedMechanism, UnsupportedForTheseParameters, WouldBlock} {
		var calls []string
		engine := NewWithStrategies(
			fakeStrategy(&calls, "direct", trigger, nil),
			fakeStrategy(&calls, "buffered", Completed, nil),
		)
		require.NoError(t, engine.Copy(nil, nil, nil))
		// The first tier is attempted exactly once for this call, never again.
		assert.Equal(t, []string{"direct", "buffered"}, calls, "outcome %s", trigger)
	}
}

func TestEngineStopsOnCancelled(t *testing.T) {
	var calls []string
	engine := NewWithStrategies(
		fakeStrategy(&calls, "direct", Cancelled, nil),
		fakeStrategy(&calls, "buffered", Completed, nil),
	)
	assert.ErrorIs(t, engine.Copy(nil, nil, nil), ErrCancelled)
	assert.Equal(t, []string{"direct"}, calls, "cancellation must not fall through to further tiers")
}

func TestEngineStopsOnError(t *testing.T) {
	var calls []string
	engine := NewWithStrategies(
		fakeStrategy(&calls, "direct", Completed, assert.AnError),
		fakeStrategy(&calls, "buffered", Completed, nil),
	)
	assert.ErrorIs(t, engine.Copy(nil, nil, nil), assert.AnError)
	assert.Equal(t, []string{"direct"}, calls)
}

func TestEngineNoUsableStrategy(t *testing.T) {
	var calls []string
	engine := NewWithStrategies(
		fakeStrategy(&calls, "direct", UnsupportedMechanism, nil),
	)
	assert.ErrorIs(t, engine.Copy(nil, nil, nil), ErrNoUsableStrategy)
}

func TestDirectCopy(t *testing.T) {
	contents := testPattern(3*directCopyChunk + 12345)
	dst, src := openPair(t, contents)

	outcome, err := DirectCopy(dst, src, nil)
	require.NoError(t, err)
	if outcome != Completed {
		// Some file systems (and kernels in constrained CI sandboxes) cannot
		// use copy_file_range; the engine would fall back in that case.
		t.Skipf("direct copy not usable here: %s", outcome)
	}
	assert.Equal(t, contents, readBack(t, dst))
}

func TestDirectCopyDisabledLatch(t *testing.T) {
	require.False(t, directCopyDisabled.Load())
	directCopyDisabled.Store(true)
	t.Cleanup(func() { directCopyDisabled.Store(false) })

	// With the latch set no syscall is attempted regardless of descriptors.
	outcome, err := DirectCopy(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, UnsupportedMechanism, outcome)
}

func TestBufferedCopy(t *testing.T) {
	// Larger than the buffer to exercise multiple chunks and poll points.
	contents := testPattern(10 << 20)
	dst, src := openPair(t, contents)

	outcome, err := BufferedCopy(dst, src, &CancelToken{})
	require.NoError(t, err)
	require.Equal(t, Completed, outcome)
	assert.Equal(t, contents, readBack(t, dst))
}

func TestEngineWithDirectCopyUnavailable(t *testing.T) {
	// Simulate a kernel without the direct mechanism: the engine must still
	// produce a byte identical destination through the buffered tier.
	contents := testPattern(10 << 20)
	dst, src := openPair(t, contents)

	var calls []string
	engine := NewWithStrategies(
		fakeStrategy(&calls, "direct", UnsupportedMechanism, nil),
		BufferedCopy,
		GenericCopy,
	)
	require.NoError(t, engine.Copy(dst, src, &CancelToken{}))
	assert.Equal(t, []string{"direct"}, calls)
	assert.Equal(t, contents, readBack(t, dst))
}

func TestCancelBeforeFirstByte(t *testing.T) {
	contents := testPattern(1 << 20)
	dst, src := openPair(t, contents)

	token := &CancelToken{}
	token.Cancel()

	assert.ErrorIs(t, New(nil).Copy(dst, src, token), ErrCancelled)
	// Cancellation before the first poll point must not transfer anything.
	assert.Empty(t, readBack(t, dst))
}

func TestGenericCopy(t *testing.T) {
	contents := testPattern(123456)
	dst, src := openPair(t, contents)

	outcome, err := GenericCopy(dst, src, nil)
	require.NoError(t, err)
	require.Equal(t, Completed, outcome)
	assert.Equal(t, contents, readBack(t, dst))
}

func TestNilTokenNeverCancelled(t *testing.T) {
	var token *CancelToken
	assert.False(t, token.Cancelled())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "would block", WouldBlock.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
