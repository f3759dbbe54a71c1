package mounttable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestEntriesFromFile(t *testing.T) {
	path := writeTable(t, strings.Join([]string{
		"/dev/sda1 / ext4 rw,relatime 0 0",
		"proc /proc proc rw,nosuid,nodev,noexec 0 0",
		"# saved by some tool",
		"tmpfs /run tmpfs rw,size=802564k,mode=755 0 0",
		"/dev/sdb1 /mnt/with\\040space ext4 rw 0 0",
		"not-enough-fields 0 0",
		"",
	}, "\n"))

	entries := EntriesFromFile(path)
	require.Len(t, entries, 4)

	assert.Equal(t, MountEntry{
		Source:  "/dev/sda1",
		Target:  "/",
		FSType:  "ext4",
		Options: "rw,relatime",
	}, entries[0])
	assert.Equal(t, "proc", entries[1].FSType)
	assert.Equal(t, "/run", entries[2].Target)
	// Octal escapes in the target must be decoded.
	assert.Equal(t, "/mnt/with space", entries[3].Target)

	for _, e := range entries {
		assert.True(t, filepath.IsAbs(e.Target), "target %q should be absolute", e.Target)
		assert.NotEmpty(t, e.FSType)
	}
}

func TestEntriesFromFileLongLines(t *testing.T) {
	// A single mount line well past the minimum decode buffer size must still
	// decode because the sizing pass grows the buffer first.
	options := "rw," + strings.Repeat("x", 4*minLineSize)
	path := writeTable(t, "/dev/sda1 /data xfs "+options+" 0 0\n")

	entries := EntriesFromFile(path)
	require.Len(t, entries, 1)
	assert.Equal(t, options, entries[0].Options)
}

func TestEntriesFromFileUnopenable(t *testing.T) {
	// Enumeration never fails outward, it just comes back empty.
	entries := EntriesFromFile(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, entries)
}

func TestDecodePassStopsOnReadFailure(t *testing.T) {
	// If the table grows a line past the probed buffer between the two passes
	// (or the source otherwise fails mid-read), the decode pass must return
	// the entries collected before the failure instead of an error.
	path := writeTable(t, strings.Join([]string{
		"/dev/sda1 / ext4 rw 0 0",
		"/dev/sda2 /home ext4 rw 0 0",
		"tmpfs /run tmpfs rw," + strings.Repeat("y", 2*minLineSize) + " 0 0",
		"proc /proc proc rw 0 0",
	}, "\n") + "\n")

	table, err := openTable(path)
	require.NoError(t, err)
	defer table.close()

	// Decode with a buffer that is too small for the third line, as if the
	// probe pass had seen an older, shorter version of the table.
	entries := table.decodeEntries(minLineSize)
	require.Len(t, entries, 2)
	assert.Equal(t, "/home", entries[1].Target)
}

func TestEntriesLiveTable(t *testing.T) {
	if _, err := os.Stat(DefaultPath); err != nil {
		t.Skipf("no live mount table at %s: %v", DefaultPath, err)
	}
	entries := Entries()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.True(t, filepath.IsAbs(e.Target))
		assert.NotEmpty(t, e.FSType)
	}
}

func TestHasOption(t *testing.T) {
	entry := MountEntry{Options: "rw,relatime,size=802564k,mode=755"}
	assert.True(t, entry.HasOption("rw"))
	assert.True(t, entry.HasOption("relatime"))
	assert.True(t, entry.HasOption("size"))
	assert.False(t, entry.HasOption("ro"))
	assert.False(t, entry.HasOption("time"))
	assert.False(t, MountEntry{Options: "ro,noatime"}.HasOption("rw"))
	assert.True(t, MountEntry{Options: "ro"}.ReadOnly())
}

func TestUnescapeOctal(t *testing.T) {
	assert.Equal(t, "/mnt/a b", unescapeOctal(`/mnt/a\040b`))
	assert.Equal(t, "tab\there", unescapeOctal(`tab\011here`))
	assert.Equal(t, `back\slash`, unescapeOctal(`back\134slash`))
	// Incomplete or non octal escapes are preserved.
	assert.Equal(t, `trailing\04`, unescapeOctal(`trailing\04`))
	assert.Equal(t, `/plain/path`, unescapeOctal(`/plain/path`))
}
