package config

import (
	"testing"

	"github.com/driftfs/drift-go/watchd/internal/watchmgr"
	"github.com/stretchr/testify/assert"
)

func validConfig() AppConfig {
	return AppConfig{
		Journal:         JournalConfig{Path: "/var/lib/drift/journal"},
		EventBufferSize: 4096,
		Watches: []watchmgr.Config{
			{Path: "/mnt/data", Recursive: true},
		},
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.ValidateConfig())

	noJournal := validConfig()
	noJournal.Journal.Path = ""
	assert.Error(t, noJournal.ValidateConfig())

	relativeWatch := validConfig()
	relativeWatch.Watches = []watchmgr.Config{{Path: "data"}}
	assert.Error(t, relativeWatch.ValidateConfig())

	capWithoutFrequency := validConfig()
	capWithoutFrequency.Journal.MaxEvents = 1000
	assert.Error(t, capWithoutFrequency.ValidateConfig())
}

func TestUpdateAllowed(t *testing.T) {
	currentConfig := validConfig()

	// The watch list may change at any time.
	newWatches := validConfig()
	newWatches.Watches = append(newWatches.Watches, watchmgr.Config{Path: "/mnt/other"})
	assert.NoError(t, currentConfig.UpdateAllowed(&newWatches))

	// The log level may change, nothing else about logging may.
	newLevel := validConfig()
	newLevel.Log.Level = 5
	assert.NoError(t, currentConfig.UpdateAllowed(&newLevel))
	newLogFile := validConfig()
	newLogFile.Log.File = "/tmp/other.log"
	assert.Error(t, currentConfig.UpdateAllowed(&newLogFile))

	// The journal is fixed after startup.
	newJournal := validConfig()
	newJournal.Journal.Path = "/somewhere/else"
	assert.Error(t, currentConfig.UpdateAllowed(&newJournal))

	newBuffer := validConfig()
	newBuffer.EventBufferSize = 1
	assert.Error(t, currentConfig.UpdateAllowed(&newBuffer))
}
