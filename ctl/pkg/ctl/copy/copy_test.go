package copy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftfs/drift-go/ctl/pkg/config"
	"github.com/driftfs/drift-go/ctl/pkg/util"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCopyTest(t *testing.T) (srcDir, dstDir string) {
	t.Helper()
	// The provider singleton must not leak between tests since each test uses its own directory.
	config.Cleanup()
	t.Cleanup(config.Cleanup)
	viper.Set(config.NumWorkersKey, 2)

	base := t.TempDir()
	srcDir = filepath.Join(base, "src")
	dstDir = filepath.Join(base, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "nested"), 0755))
	require.NoError(t, os.MkdirAll(dstDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "nested", "b.log"), []byte("bravo"), 0644))
	return srcDir, dstDir
}

func drain(t *testing.T, results <-chan CopyPaths_Result, errs <-chan error) []CopyPaths_Result {
	t.Helper()
	var all []CopyPaths_Result
	for r := range results {
		all = append(all, r)
	}
	select {
	case err := <-errs:
		require.NoError(t, err)
	default:
	}
	return all
}

func TestCopyPathsRecursive(t *testing.T) {
	srcDir, dstDir := setupCopyTest(t)

	method, err := util.DeterminePathInputMethod([]string{srcDir}, true, `\n`)
	require.NoError(t, err)

	results, errs, err := CopyPaths(context.Background(), method, dstDir, CopyPaths_Config{
		Overwrite:     true,
		PreserveTimes: true,
	})
	require.NoError(t, err)
	all := drain(t, results, errs)

	for _, r := range all {
		assert.NotEqual(t, StatusFailed, r.Status, "entry %s failed: %v", r.Source, r.Err)
	}

	got, err := os.ReadFile(filepath.Join(dstDir, "src", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))
	got, err = os.ReadFile(filepath.Join(dstDir, "src", "nested", "b.log"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))
}

func TestCopyPathsPatternSkipsNonMatching(t *testing.T) {
	srcDir, dstDir := setupCopyTest(t)

	method, err := util.DeterminePathInputMethod([]string{srcDir}, true, `\n`)
	require.NoError(t, err)

	results, errs, err := CopyPaths(context.Background(), method, dstDir, CopyPaths_Config{
		Overwrite: true,
		Pattern:   "**/*.log",
	})
	require.NoError(t, err)
	drain(t, results, errs)

	_, err = os.Stat(filepath.Join(dstDir, "src", "a.txt"))
	assert.True(t, os.IsNotExist(err), "a.txt does not match the pattern and should not exist")
	got, err := os.ReadFile(filepath.Join(dstDir, "src", "nested", "b.log"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))
}

func TestCopyPathsList(t *testing.T) {
	srcDir, dstDir := setupCopyTest(t)

	method, err := util.DeterminePathInputMethod([]string{filepath.Join(srcDir, "a.txt")}, false, `\n`)
	require.NoError(t, err)

	results, errs, err := CopyPaths(context.Background(), method, dstDir, CopyPaths_Config{})
	require.NoError(t, err)
	all := drain(t, results, errs)

	require.Len(t, all, 1)
	assert.Equal(t, StatusCopied, all[0].Status)
	assert.Equal(t, int64(5), all[0].Bytes)
	got, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))
}

func TestCopyPathsExistingFileSkipped(t *testing.T) {
	srcDir, dstDir := setupCopyTest(t)
	require.NoError(t, os.WriteFile(filepath.Join(dstDir, "a.txt"), []byte("old"), 0644))

	method, err := util.DeterminePathInputMethod([]string{filepath.Join(srcDir, "a.txt")}, false, `\n`)
	require.NoError(t, err)

	results, errs, err := CopyPaths(context.Background(), method, dstDir, CopyPaths_Config{})
	require.NoError(t, err)
	all := drain(t, results, errs)

	require.Len(t, all, 1)
	assert.Equal(t, StatusSkipped, all[0].Status)
	got, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got), "an existing destination must not be touched without overwrite")
}
