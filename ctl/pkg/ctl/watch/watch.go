// Package watch implements the backend for streaming file system change notifications, optionally
// persisting them to an on-disk journal.
package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftfs/drift-go/common/eventjournal"
	cwatch "github.com/driftfs/drift-go/common/watch"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	"go.uber.org/zap"
)

type WatchPath_Config struct {
	// Path is the directory to watch.
	Path string
	// Recursive watches all current and future subdirectories of Path.
	Recursive bool
	// JournalPath, when set, names a directory where events are additionally persisted before
	// being delivered. A previously written journal at the same path is appended to.
	JournalPath string
	// BufferSize overrides the default event ring buffer capacity when > 0.
	BufferSize int
}

// WatchPath watches the configured directory and streams its change events until ctx ends. Events
// are delivered in arrival order with strictly increasing sequence IDs; gaps in the IDs mean the
// consumer was too slow and the ring buffer dropped events. The events channel is closed once the
// watch shuts down, after which at most one error describing the shutdown reason is available on
// the errs channel.
func WatchPath(ctx context.Context, cfg WatchPath_Config) (<-chan *cwatch.Event, <-chan error, error) {
	log, _ := config.GetLogger()

	provider, err := config.DriftClient(cfg.Path)
	if err != nil {
		return nil, nil, err
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = cwatch.DefaultBufferSize
	}
	svc, err := cwatch.NewWithBufferSize(provider, log.Logger, bufferSize)
	if err != nil {
		return nil, nil, err
	}
	regID, err := svc.Register(cfg.Path, cfg.Recursive)
	if err != nil {
		svc.Close()
		return nil, nil, err
	}

	var journal *eventjournal.Journal
	if cfg.JournalPath != "" {
		journal, err = eventjournal.Open(cfg.JournalPath, log.Logger)
		if err != nil {
			svc.Close()
			return nil, nil, fmt.Errorf("opening event journal: %w", err)
		}
	}

	events := make(chan *cwatch.Event, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer func() {
			if err := svc.Deregister(regID); err != nil && !errors.Is(err, cwatch.ErrClosed) {
				log.Debug("deregistering watch", zap.Error(err))
			}
			if err := svc.Close(); err != nil {
				log.Debug("closing watch service", zap.Error(err))
			}
			if journal != nil {
				if err := journal.Close(); err != nil {
					log.Debug("closing event journal", zap.Error(err))
				}
			}
		}()
		for {
			event, err := svc.Next(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, cwatch.ErrClosed) {
					errs <- err
				}
				return
			}
			if journal != nil {
				if err := journal.Append(event); err != nil {
					errs <- fmt.Errorf("appending to event journal: %w", err)
					return
				}
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, errs, nil
}

// ReplayJournal replays a previously written event journal in sequence order, starting at the
// first event with a sequence ID >= seqID (0 replays everything).
func ReplayJournal(journalPath string, seqID uint64, fn func(*cwatch.Event) error) error {
	log, _ := config.GetLogger()
	journal, err := eventjournal.Open(journalPath, log.Logger)
	if err != nil {
		return fmt.Errorf("opening event journal: %w", err)
	}
	defer journal.Close()
	return journal.ReplayFrom(seqID, fn)
}
