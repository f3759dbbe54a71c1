package attrs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// xattrTestFile creates a file and skips the test if the file system backing
// the temp dir has no user xattr support (tmpfs on older kernels, some CI
// sandboxes).
func xattrTestFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	if err := Set(path, "user.drift.probe", []byte("1")); err != nil {
		if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EPERM) {
			t.Skipf("user xattrs not usable here: %v", err)
		}
		require.NoError(t, err)
	}
	require.NoError(t, Remove(path, "user.drift.probe"))
	return path
}

func TestXattrRoundTrip(t *testing.T) {
	path := xattrTestFile(t)

	require.NoError(t, Set(path, "user.drift.one", []byte("alpha")))
	require.NoError(t, Set(path, "user.drift.two", []byte("beta")))

	value, err := Get(path, "user.drift.one")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), value)

	names, err := List(path)
	require.NoError(t, err)
	assert.Contains(t, names, "user.drift.one")
	assert.Contains(t, names, "user.drift.two")

	require.NoError(t, Remove(path, "user.drift.one"))
	_, err = Get(path, "user.drift.one")
	assert.Error(t, err)
}

func TestCopyAll(t *testing.T) {
	src := xattrTestFile(t)
	dst := filepath.Join(filepath.Dir(src), "dst")
	require.NoError(t, os.WriteFile(dst, []byte("y"), 0644))

	require.NoError(t, Set(src, "user.drift.a", []byte("1")))
	require.NoError(t, Set(src, "user.drift.b", []byte("2")))

	require.NoError(t, CopyAll(src, dst))

	value, err := Get(dst, "user.drift.a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
	value, err = Get(dst, "user.drift.b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), value)
}

func TestCopyAllWithoutXattrs(t *testing.T) {
	// A source without any xattrs must not fail the copy.
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, nil, 0644))
	require.NoError(t, os.WriteFile(dst, nil, 0644))
	assert.NoError(t, CopyAll(src, dst))
}

func TestDOSAttributesRoundTrip(t *testing.T) {
	path := xattrTestFile(t)

	// A file without the attribute has all bits clear.
	attrs, err := GetDOSAttributes(path)
	require.NoError(t, err)
	assert.Equal(t, DOSAttributes{}, attrs)

	want := DOSAttributes{ReadOnly: true, Archive: true}
	require.NoError(t, SetDOSAttributes(path, want))

	attrs, err = GetDOSAttributes(path)
	require.NoError(t, err)
	assert.Equal(t, want, attrs)

	// The on-disk encoding is the Samba compatible hex form.
	raw, err := Get(path, DOSAttributeName)
	require.NoError(t, err)
	assert.Equal(t, "0x21", string(raw))
}

func TestParseDOSValue(t *testing.T) {
	tests := []struct {
		value   string
		want    uint64
		wantErr bool
	}{
		{"0x21", 0x21, false},
		{"0X04", 0x04, false},
		{"0x0\x00", 0, false}, // NUL terminated writers exist
		{"33", 0, true},       // raw decimal is ambiguous, rejected
		{"0xzz", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		bits, err := parseDOSValue(tt.value)
		if tt.wantErr {
			assert.Error(t, err, "value %q", tt.value)
			continue
		}
		require.NoError(t, err, "value %q", tt.value)
		assert.Equal(t, tt.want, bits, "value %q", tt.value)
	}
}

func TestDOSAttributesString(t *testing.T) {
	assert.Equal(t, "----", DOSAttributes{}.String())
	assert.Equal(t, "r--a", DOSAttributes{ReadOnly: true, Archive: true}.String())
	assert.Equal(t, "rhsa", DOSAttributes{ReadOnly: true, Hidden: true, System: true, Archive: true}.String())
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"user.a", "user.bb"}, splitNames([]byte("user.a\x00user.bb\x00")))
	assert.Nil(t, splitNames(nil))
	assert.Nil(t, splitNames([]byte{0}))
}

func TestGetInodeFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	flags, err := GetInodeFlags(path)
	if err != nil {
		// Not every file system implements the flags ioctl.
		t.Skipf("inode flags not readable here: %v", err)
	}
	// A freshly created file must not be immutable or append-only.
	assert.False(t, flags.Immutable)
	assert.False(t, flags.AppendOnly)
}
