// Package watchmgr manages the set of active watches for the watch daemon, starting and stopping
// them as the configured list changes.
package watchmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/driftfs/drift-go/common/eventjournal"
	"github.com/driftfs/drift-go/common/filesystem"
	cwatch "github.com/driftfs/drift-go/common/watch"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config is the configuration of a single watch. It is defined here rather than in the config
// package so the application config can be assembled by composition without cyclical imports.
type Config struct {
	Path      string `mapstructure:"path"`
	Recursive bool   `mapstructure:"recursive"`
}

// Configurer is used to extract the watch list from the application configuration without
// requiring knowledge of the full configuration type.
type Configurer interface {
	GetWatchConfig() []Config
}

// Manager keeps the active watches in sync with the configured list. Each watch runs its own
// service and pump goroutine appending events to the shared journal.
type Manager struct {
	log        *zap.Logger
	journal    *eventjournal.Journal
	bufferSize int

	mu     sync.Mutex
	active map[Config]*activeWatch
}

type activeWatch struct {
	svc    *cwatch.Service
	cancel context.CancelFunc
	done   chan struct{}
}

func New(log *zap.Logger, journal *eventjournal.Journal, bufferSize int) *Manager {
	return &Manager{
		log:        log.With(zap.String("component", "watchmgr")),
		journal:    journal,
		bufferSize: bufferSize,
		active:     make(map[Config]*activeWatch),
	}
}

// UpdateConfiguration satisfies the configmgr.Listener interface. Watches present in the new
// configuration but not yet active are started, active watches no longer configured are stopped,
// and unchanged watches keep running without interruption. Watches that fail to start are
// reported but do not prevent the rest of the update from being applied.
func (m *Manager) UpdateConfiguration(newConfig any) error {
	configurer, ok := newConfig.(Configurer)
	if !ok {
		return fmt.Errorf("unable to get the watch list from the application configuration (most likely this indicates a bug and a report should be filed)")
	}
	desired := make(map[Config]struct{}, len(configurer.GetWatchConfig()))
	for _, cfg := range configurer.GetWatchConfig() {
		desired[cfg] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var combinedErr error
	for cfg, w := range m.active {
		if _, ok := desired[cfg]; !ok {
			m.stopWatch(cfg, w)
		}
	}
	for cfg := range desired {
		if _, ok := m.active[cfg]; ok {
			continue
		}
		if err := m.startWatch(cfg); err != nil {
			combinedErr = multierr.Append(combinedErr, fmt.Errorf("unable to start watch on %s: %w", cfg.Path, err))
		}
	}
	return combinedErr
}

// Stop shuts down all active watches and waits for their pump goroutines to finish. The journal
// is left open for the caller to close.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for cfg, w := range m.active {
		m.stopWatch(cfg, w)
	}
}

// startWatch must be called with m.mu held.
func (m *Manager) startWatch(cfg Config) error {
	provider, err := filesystem.NewFromPath(cfg.Path)
	if err != nil {
		return err
	}
	svc, err := cwatch.NewWithBufferSize(provider, m.log, m.bufferSize)
	if err != nil {
		return err
	}
	if _, err := svc.Register(cfg.Path, cfg.Recursive); err != nil {
		svc.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &activeWatch{svc: svc, cancel: cancel, done: make(chan struct{})}
	m.active[cfg] = w
	m.log.Info("started watch", zap.String("path", cfg.Path), zap.Bool("recursive", cfg.Recursive))

	go func() {
		defer close(w.done)
		for {
			event, err := svc.Next(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, cwatch.ErrClosed) {
					m.log.Error("watch stopped unexpectedly", zap.String("path", cfg.Path), zap.Error(err))
				}
				return
			}
			if err := m.journal.Append(event); err != nil {
				// Journal failures are most likely persistent (e.g. disk full) and dropping
				// events silently would defeat the purpose of the daemon.
				m.log.Error("unable to journal event", zap.String("path", event.Path), zap.Error(err))
				return
			}
		}
	}()
	return nil
}

// stopWatch must be called with m.mu held.
func (m *Manager) stopWatch(cfg Config, w *activeWatch) {
	w.cancel()
	if err := w.svc.Close(); err != nil {
		m.log.Warn("error closing watch service", zap.String("path", cfg.Path), zap.Error(err))
	}
	<-w.done
	delete(m.active, cfg)
	m.log.Info("stopped watch", zap.String("path", cfg.Path))
}
