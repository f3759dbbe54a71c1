package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkDirLexicographically(t *testing.T) {
	dir := t.TempDir()

	// Deliberately mirrors the case where the standard library walks a
	// directory ahead of a file sharing its name as a prefix.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "arm", "rockchip"), 0755))
	for _, name := range []string{
		"arm/rockchip/pmu.yaml",
		"arm/rockchip.yaml",
		"arm/rtsm-dcscb.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}

	var walked []string
	err := WalkDirLexicographically(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		walked = append(walked, rel)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"arm/rockchip.yaml",
		"arm/rockchip/pmu.yaml",
		"arm/rtsm-dcscb.txt",
	}, walked)
}

func TestWalkDirLexicographicallySkipDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "skipped"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skipped", "inner"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible"), []byte("x"), 0644))

	var walked []string
	err := WalkDirLexicographically(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && filepath.Base(path) == "skipped" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			walked = append(walked, filepath.Base(path))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, walked)
}
