package filesystem

import (
	"io"
	"testing"

	"github.com/driftfs/drift-go/common/filecopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFSCopyContents(t *testing.T) {
	mock := NewMockFS()
	require.NoError(t, mock.CreateDir("/data", 0755))

	memFS := mock.(MockFS)
	require.NoError(t, writeMockFile(memFS, "/data/src", []byte("hello mock")))
	require.NoError(t, mock.CreatePreallocatedFile("/data/dst", 10, false))

	require.NoError(t, mock.CopyContentsToFile("/data/src", "/data/dst", nil))

	file, err := mock.Open("/data/dst")
	require.NoError(t, err)
	defer file.Close()
	contents, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello mock"), contents)

	token := &filecopy.CancelToken{}
	token.Cancel()
	assert.ErrorIs(t, mock.CopyContentsToFile("/data/src", "/data/dst", token), filecopy.ErrCancelled)
}

func writeMockFile(m MockFS, path string, contents []byte) error {
	file, err := m.Fs.Create(path)
	if err != nil {
		return err
	}
	if _, err := file.Write(contents); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
