package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	provider, err := filesystem.NewFromPath(dir)
	require.NoError(t, err)
	service, err := New(provider, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })
	return service, dir
}

func TestServiceDeliversCreateEvents(t *testing.T) {
	service, dir := newTestService(t)

	id, err := service.Register(dir, false)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	path := filepath.Join(dir, "hello")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event, err := service.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, event.Path)
	assert.True(t, event.Op.Has(fsnotify.Create))
	assert.Equal(t, uint64(1), event.SeqID)
}

func TestServiceSequenceIDsIncrease(t *testing.T) {
	service, dir := newTestService(t)

	_, err := service.Register(dir, false)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var last uint64
	// Each write produces at least a create and a write event, only the
	// ordering matters here:
	for i := 0; i < 3; i++ {
		event, err := service.Next(ctx)
		require.NoError(t, err)
		assert.Greater(t, event.SeqID, last)
		last = event.SeqID
	}
}

func TestServiceRecursiveRegistrationWatchesNewDirs(t *testing.T) {
	service, dir := newTestService(t)

	_, err := service.Register(dir, true)
	require.NoError(t, err)

	subDir := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(subDir, 0755))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Wait for the directory creation to be observed, which also means the
	// watch on the new directory is in place.
	for {
		event, err := service.Next(ctx)
		require.NoError(t, err)
		if event.Path == subDir && event.Op.Has(fsnotify.Create) {
			break
		}
	}

	nested := filepath.Join(subDir, "nested")
	require.NoError(t, os.WriteFile(nested, []byte("nested"), 0644))
	for {
		event, err := service.Next(ctx)
		require.NoError(t, err)
		if event.Path == nested {
			return
		}
	}
}

func TestServiceRegisterRejectsFiles(t *testing.T) {
	service, dir := newTestService(t)

	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := service.Register(path, false)
	assert.ErrorIs(t, err, filesystem.ErrNotADir)
}

func TestServiceDeregister(t *testing.T) {
	service, dir := newTestService(t)

	id, err := service.Register(dir, false)
	require.NoError(t, err)
	require.NoError(t, service.Deregister(id))

	err = service.Deregister(id)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown watch registration"))
}

func TestServiceCloseIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)

	require.NoError(t, service.Close())
	require.NoError(t, service.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := service.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
