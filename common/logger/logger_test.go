package logger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	// Developer mode wins over everything else and always logs at debug.
	devLogger, err := New(Config{Developer: true})
	assert.NoError(t, err)
	assert.NotNil(t, devLogger.Logger)
	assert.Equal(t, "debug", devLogger.level.String())

	tests := []struct {
		logType   supportedLogTypes
		level     int8
		wantLevel string
	}{
		{"stdout", 3, "info"},
		{"stderr", 1, "warn"},
		{"stdout", 5, "debug"},
	}
	for _, tt := range tests {
		l, err := New(Config{Type: tt.logType, Level: tt.level})
		assert.NoError(t, err)
		assert.NotNil(t, l.Logger)
		assert.Equal(t, tt.wantLevel, l.level.String(), "type=%s level=%d", tt.logType, tt.level)
	}

	_, err = New(Config{Type: "foo", Level: 3})
	assert.ErrorContains(t, err, "unsupported log type")
}

type testConfig struct {
	logConfig Config
}

func (c *testConfig) GetLoggingConfig() Config {
	return c.logConfig
}

var _ Configurer = &testConfig{}

// Reconfiguration may only move the level. Type changes would need the output to be reopened so
// they are ignored.
func TestUpdateConfiguration(t *testing.T) {
	l, err := New(Config{Type: "stdout", Level: 1})
	assert.NoError(t, err)
	assert.Equal(t, "warn", l.level.String())

	err = l.UpdateConfiguration(&testConfig{
		logConfig: Config{Level: 5, Type: "stderr"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "debug", l.level.String())
}

func TestGetLevel(t *testing.T) {
	tests := []struct {
		newLevel  int8
		wantLevel zapcore.Level
		wantErr   error
	}{
		{1, zapcore.WarnLevel, nil},
		{3, zapcore.InfoLevel, nil},
		{5, zapcore.DebugLevel, nil},
		{2, zapcore.InfoLevel, fmt.Errorf("the provided log.level (2) is invalid (must be 1, 3, or 5)")},
		{4, zapcore.InfoLevel, fmt.Errorf("the provided log.level (4) is invalid (must be 1, 3, or 5)")},
	}

	for _, tt := range tests {
		gotLevel, gotErr := getLevel(tt.newLevel)
		assert.Equal(t, tt.wantLevel, gotLevel, "getLevel(%d) level mismatch", tt.newLevel)
		assert.Equal(t, tt.wantErr, gotErr, "getLevel(%d) error mismatch", tt.newLevel)
	}
}
