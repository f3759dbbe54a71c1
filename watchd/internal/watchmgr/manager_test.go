package watchmgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftfs/drift-go/common/eventjournal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testConfigurer struct {
	watches []Config
}

func (c testConfigurer) GetWatchConfig() []Config {
	return c.watches
}

func TestManagerJournalsEvents(t *testing.T) {
	watchDir := t.TempDir()
	journal, err := eventjournal.Open(filepath.Join(t.TempDir(), "journal"), zap.NewNop())
	require.NoError(t, err)
	defer journal.Close()

	mgr := New(zap.NewNop(), journal, 64)
	defer mgr.Stop()

	require.NoError(t, mgr.UpdateConfiguration(testConfigurer{
		watches: []Config{{Path: watchDir}},
	}))

	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "hello"), []byte("hello"), 0644))

	assert.Eventually(t, func() bool {
		lastSeq, err := journal.LastSeqID()
		return err == nil && lastSeq > 0
	}, 5*time.Second, 10*time.Millisecond, "event never reached the journal")
}

func TestManagerStopsRemovedWatches(t *testing.T) {
	watchDir := t.TempDir()
	journal, err := eventjournal.Open(filepath.Join(t.TempDir(), "journal"), zap.NewNop())
	require.NoError(t, err)
	defer journal.Close()

	mgr := New(zap.NewNop(), journal, 64)
	defer mgr.Stop()

	require.NoError(t, mgr.UpdateConfiguration(testConfigurer{
		watches: []Config{{Path: watchDir}},
	}))
	require.Len(t, mgr.active, 1)

	require.NoError(t, mgr.UpdateConfiguration(testConfigurer{}))
	require.Empty(t, mgr.active)
}

func TestManagerRejectsUnknownConfig(t *testing.T) {
	journal, err := eventjournal.Open(filepath.Join(t.TempDir(), "journal"), zap.NewNop())
	require.NoError(t, err)
	defer journal.Close()

	mgr := New(zap.NewNop(), journal, 64)
	assert.Error(t, mgr.UpdateConfiguration(struct{}{}))
}
