package filesystem

import (
	"testing"

	"github.com/driftfs/drift-go/common/mounttable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	store, err := NewFileStore(mounttable.MountEntry{
		Source:  "tmpfs",
		Target:  t.TempDir(),
		FSType:  "tmpfs",
		Options: "rw",
	})
	require.NoError(t, err)

	assert.Equal(t, "tmpfs", store.Name())
	assert.Equal(t, "tmpfs", store.Type())
	assert.NotZero(t, store.TotalBytes)
	assert.GreaterOrEqual(t, store.FreeBytes, store.AvailableBytes)
	assert.False(t, store.ReadOnly)

	assert.True(t, store.SupportsView("basic"))
	assert.True(t, store.SupportsView("posix"))
	assert.False(t, store.SupportsView("acl"))
}

func TestNewFileStoreMissingTarget(t *testing.T) {
	_, err := NewFileStore(mounttable.MountEntry{
		Source: "/dev/gone",
		Target: "/this/mount/does/not/exist",
		FSType: "ext4",
	})
	assert.Error(t, err)
}

func TestFileStoreTypeFallsBackToMagic(t *testing.T) {
	store, err := NewFileStore(mounttable.MountEntry{
		Source:  "none",
		Target:  t.TempDir(),
		FSType:  "none",
		Options: "ro",
	})
	require.NoError(t, err)
	// "none" is unhelpful, the statfs magic decides instead.
	assert.Equal(t, TypeNameFromMagic(store.Magic), store.Type())
	assert.True(t, store.ReadOnly)
}

func TestTypeNameFromMagic(t *testing.T) {
	assert.Equal(t, "ext4", TypeNameFromMagic(magicExt))
	assert.Equal(t, "tmpfs", TypeNameFromMagic(magicTmpfs))
	assert.Equal(t, "unknown", TypeNameFromMagic(0x12345678))
	assert.True(t, NetworkFileSystem(magicNfs))
	assert.False(t, NetworkFileSystem(magicExt))
}
