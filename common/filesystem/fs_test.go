package filesystem

import (
	"io"
	"os"
	"testing"

	"github.com/driftfs/drift-go/common/filecopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T) Provider {
	t.Helper()
	provider, err := NewFromMountPoint(t.TempDir())
	require.NoError(t, err)
	return provider
}

func TestNewFromMountPoint(t *testing.T) {
	_, err := NewFromMountPoint("")
	assert.ErrorIs(t, err, ErrInitProvider)

	dir := t.TempDir()
	provider, err := NewFromMountPoint(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, provider.GetMountPath())

	file := dir + "/f"
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = NewFromMountPoint(file)
	assert.ErrorIs(t, err, ErrNotADir)
}

func TestNewFromPath(t *testing.T) {
	// Walking up from a path that does not exist yet must still find the
	// mount point containing it.
	provider, err := NewFromPath(t.TempDir() + "/does/not/exist/yet")
	require.NoError(t, err)
	assert.NotEmpty(t, provider.GetMountPath())
}

func TestGetRelativePathWithinMount(t *testing.T) {
	provider := testProvider(t)
	rel, err := provider.GetRelativePathWithinMount(provider.GetMountPath() + "/a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b", rel)
}

func TestCreatePreallocatedFile(t *testing.T) {
	provider := testProvider(t)
	require.NoError(t, provider.CreatePreallocatedFile("foo", 2<<10, false))

	info, err := provider.Stat("foo")
	require.NoError(t, err)
	assert.Equal(t, int64(2<<10), info.Size())

	// Without overwrite a second create must fail, with it the file is zeroed.
	assert.Error(t, provider.CreatePreallocatedFile("foo", 4, false))
	assert.NoError(t, provider.CreatePreallocatedFile("foo", 4, true))
}

func TestCopyContentsToFile(t *testing.T) {
	provider := testProvider(t)

	contents := make([]byte, 1<<20)
	for i := range contents {
		contents[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(provider.GetMountPath()+"/src", contents, 0644))
	require.NoError(t, provider.CreatePreallocatedFile("dst", int64(len(contents)), false))

	require.NoError(t, provider.CopyContentsToFile("/src", "/dst", &filecopy.CancelToken{}))

	file, err := provider.Open("/dst")
	require.NoError(t, err)
	defer file.Close()
	copied, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, contents, copied)
}

func TestCopyContentsToFileCancelled(t *testing.T) {
	provider := testProvider(t)
	require.NoError(t, os.WriteFile(provider.GetMountPath()+"/src", []byte("data"), 0644))
	require.NoError(t, provider.CreatePreallocatedFile("dst", 4, false))

	token := &filecopy.CancelToken{}
	token.Cancel()
	assert.ErrorIs(t, provider.CopyContentsToFile("/src", "/dst", token), filecopy.ErrCancelled)
}

func TestCopyOwnerAndModeAndTimestamps(t *testing.T) {
	provider := testProvider(t)
	require.NoError(t, os.WriteFile(provider.GetMountPath()+"/src", []byte("x"), 0751))
	require.NoError(t, os.WriteFile(provider.GetMountPath()+"/dst", []byte("y"), 0600))

	info, err := provider.Stat("/src")
	require.NoError(t, err)

	require.NoError(t, provider.CopyOwnerAndMode(info, "/dst"))
	require.NoError(t, provider.CopyTimestamps(info, "/dst"))

	dstInfo, err := provider.Stat("/dst")
	require.NoError(t, err)
	assert.Equal(t, info.Mode(), dstInfo.Mode())
	assert.Equal(t, info.ModTime(), dstInfo.ModTime())
}
