package config

import (
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/driftfs/drift-go/common/configmgr"
	"github.com/driftfs/drift-go/common/logger"
	"github.com/driftfs/drift-go/watchd/internal/watchmgr"
	"go.uber.org/multierr"
)

// We use ConfigManager to handle configuration updates.
// Verify all interfaces that depend on AppConfig are satisfied.
var _ configmgr.Configurable = &AppConfig{}
var _ logger.Configurer = &AppConfig{}
var _ watchmgr.Configurer = &AppConfig{}

// AppConfig defines all configuration supported by all application components.
// IMPORTANT: When updating/refactoring AppConfig these changes need to be
// manually applied to the pflags defined in main.go.
type AppConfig struct {
	Log     logger.Config     `mapstructure:"log"`
	Journal JournalConfig     `mapstructure:"journal"`
	Watches []watchmgr.Config `mapstructure:"watch"`
	// EventBufferSize is the per-watch ring buffer capacity.
	EventBufferSize int `mapstructure:"event-buffer-size"`
	Developer       struct {
		PerfProfilingPort int  `mapstructure:"perf-profiling-port"`
		DumpConfig        bool `mapstructure:"dump-config"`
	}
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
	// MaxEvents caps how many journaled events are retained, 0 keeps everything.
	MaxEvents uint64 `mapstructure:"max-events"`
	// TrimFrequency is how often in seconds the retention cap is enforced.
	TrimFrequency int `mapstructure:"trim-frequency"`
}

// GetLoggingConfig returns only the part of an AppConfig expected by the logger.
func (c *AppConfig) GetLoggingConfig() logger.Config {
	return c.Log
}

// GetWatchConfig returns only the part of an AppConfig expected by the watch manager.
func (c *AppConfig) GetWatchConfig() []watchmgr.Config {
	return c.Watches
}

// NewEmptyInstance() returns an empty AppConfig for ConfigManager to use with
// when unmarshalling the configuration.
func (c *AppConfig) NewEmptyInstance() configmgr.Configurable {
	return new(AppConfig)
}

// UpdateAllowed() determines if the existing AppConfig c can be safely updated
// to the provided newConfig. The watch list can change at any time, everything
// else is fixed after startup except the log level.
func (c *AppConfig) UpdateAllowed(newConfig configmgr.Configurable) error {

	nc, ok := newConfig.(*AppConfig)
	if !ok {
		return fmt.Errorf("invalid configuration provided (expected watch daemon application configuration)")
	}

	if nc.Developer != c.Developer {
		return fmt.Errorf("rejecting configuration update: unable to change developer configuration settings after startup (current settings: %+v | proposed settings: %+v)", c.Developer, nc.Developer)
	}
	if nc.Journal != c.Journal {
		return fmt.Errorf("rejecting configuration update: unable to change journal configuration settings after startup (current settings: %+v | proposed settings: %+v)", c.Journal, nc.Journal)
	}
	if nc.EventBufferSize != c.EventBufferSize {
		return fmt.Errorf("rejecting configuration update: unable to change the event buffer size after startup (current: %d | proposed: %d)", c.EventBufferSize, nc.EventBufferSize)
	}
	if nc.Log != c.Log {
		// Use reflection to iterate over the fields of the logging config
		// struct and ensure only fields we allow to change do (currently
		// only the level).
		newConfigLog := reflect.ValueOf(nc.Log)
		currentConfigLog := reflect.ValueOf(c.Log)

		for i := 0; i < newConfigLog.NumField(); i++ {
			fieldName := newConfigLog.Type().Field(i).Name
			if fieldName != "Level" && newConfigLog.Field(i).Interface() != currentConfigLog.Field(i).Interface() {
				return fmt.Errorf("rejecting configuration update: unable to change logging configuration settings after startup (current settings: %+v | proposed settings: %+v)", c.Log, nc.Log)
			}
		}
	}

	return nil
}

// ValidateConfig checks we received sane configuration values. Any issues are
// aggregated specifying the problematic values. Note it only performs static
// checks, and will not (for example) catch if a path doesn't exist or we don't
// have permissions to access it.
func (c *AppConfig) ValidateConfig() error {

	var combinedErr error

	if c.Journal.Path == "" {
		combinedErr = multierr.Append(combinedErr, fmt.Errorf("the journal path must be specified"))
	}
	if c.EventBufferSize <= 0 {
		combinedErr = multierr.Append(combinedErr, fmt.Errorf("the event buffer size must be greater than zero"))
	}
	if c.Journal.MaxEvents != 0 && c.Journal.TrimFrequency <= 0 {
		combinedErr = multierr.Append(combinedErr, fmt.Errorf("the journal trim frequency must be greater than zero when a retention cap is set"))
	}
	for _, w := range c.Watches {
		if w.Path == "" {
			combinedErr = multierr.Append(combinedErr, fmt.Errorf("a watch was specified without a path"))
		} else if !filepath.IsAbs(w.Path) {
			combinedErr = multierr.Append(combinedErr, fmt.Errorf("watch paths must be absolute (got %s)", w.Path))
		}
	}

	return combinedErr
}
