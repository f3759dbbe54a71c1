package mount

import (
	"testing"

	"github.com/driftfs/drift-go/common/mounttable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() mounttable.MountEntry {
	return mounttable.MountEntry{
		Source:  "/dev/sda1",
		Target:  "/mnt/data",
		FSType:  "ext4",
		Options: "rw,relatime",
	}
}

func TestCompileStoreFilter(t *testing.T) {
	env := filterEnvFromEntry(testEntry())

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"MatchType", `fstype == "ext4"`, true},
		{"NoMatchType", `fstype == "xfs"`, false},
		{"MatchTarget", `target startsWith "/mnt"`, true},
		{"NotReadOnly", `!readonly`, true},
		{"OptionsContains", `options contains "relatime"`, true},
		{"Combined", `fstype == "ext4" && source == "/dev/sda1"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := compileStoreFilter(tt.expr)
			require.NoError(t, err)
			ok, err := filter(env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCompileStoreFilterRejectsNonBool(t *testing.T) {
	_, err := compileStoreFilter(`fstype`)
	assert.Error(t, err)
}

func TestCompileStoreFilterRejectsInvalid(t *testing.T) {
	_, err := compileStoreFilter(`not_a_valid_expr(`)
	assert.Error(t, err)
}
