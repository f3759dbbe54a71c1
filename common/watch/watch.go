package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBufferSize is the number of events retained for a slow consumer
// before the oldest events are overwritten.
const DefaultBufferSize = 4096

// ErrClosed is returned by operations on a service after Close.
var ErrClosed = errors.New("watch service is closed")

// Service watches registered directories and buffers their change events.
// Events carry service-wide sequence IDs so consumers can detect when the ring
// buffer overwrote events they never saw.
type Service struct {
	provider  filesystem.Provider
	watcher   *fsnotify.Watcher
	log       *zap.Logger
	buffer    *EventRingBuffer
	seq       atomic.Uint64
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu            sync.Mutex
	registrations map[uuid.UUID]*registration
}

type registration struct {
	path      string
	recursive bool
	// Directories currently watched on behalf of this registration. For a
	// recursive registration this grows as subdirectories are created.
	dirs []string
}

// New returns a service watching paths resolved through provider. Linux always
// has the inotify family available so there is no mechanism selection here.
func New(provider filesystem.Provider, log *zap.Logger) (*Service, error) {
	return NewWithBufferSize(provider, log, DefaultBufferSize)
}

// NewWithBufferSize is New with an explicit ring buffer capacity.
func NewWithBufferSize(provider filesystem.Provider, log *zap.Logger, bufferSize int) (*Service, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error setting up file system watcher: %w", err)
	}
	s := &Service{
		provider:      provider,
		watcher:       watcher,
		log:           log,
		buffer:        NewEventRingBuffer(bufferSize),
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
		registrations: make(map[uuid.UUID]*registration),
	}
	go s.run()
	return s, nil
}

// Register starts watching path, which must be a directory inside the
// provider's mount point. With recursive set all current subdirectories are
// watched as well, and directories created later under path are picked up
// automatically. The returned ID deregisters the whole subtree.
func (s *Service) Register(path string, recursive bool) (uuid.UUID, error) {
	relPath, err := s.provider.GetRelativePathWithinMount(path)
	if err != nil {
		return uuid.Nil, err
	}
	info, err := s.provider.Stat(relPath)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error checking watch path: %w", err)
	}
	if !info.IsDir() {
		return uuid.Nil, fmt.Errorf("watch path %s: %w", path, filesystem.ErrNotADir)
	}

	// The kernel reports events with full paths, so watches are tracked in
	// that form rather than the mount-relative one.
	root := filepath.Join(s.provider.GetMountPath(), relPath)
	reg := &registration{path: root, recursive: recursive}
	if recursive {
		err = s.provider.WalkDir(relPath, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() {
				return nil
			}
			if err := s.watcher.Add(p); err != nil {
				return fmt.Errorf("error watching directory %s: %w", p, err)
			}
			reg.dirs = append(reg.dirs, p)
			return nil
		})
	} else {
		if err = s.watcher.Add(root); err == nil {
			reg.dirs = append(reg.dirs, root)
		}
	}
	if err != nil {
		s.removeWatches(reg)
		return uuid.Nil, err
	}

	id := uuid.New()
	s.mu.Lock()
	s.registrations[id] = reg
	s.mu.Unlock()
	s.log.Debug("registered watch", zap.String("id", id.String()), zap.String("path", path), zap.Bool("recursive", recursive))
	return id, nil
}

// Deregister stops the watches belonging to a registration. Events already
// buffered for those paths stay in the buffer.
func (s *Service) Deregister(id uuid.UUID) error {
	s.mu.Lock()
	reg, ok := s.registrations[id]
	if ok {
		delete(s.registrations, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown watch registration %s", id)
	}
	s.removeWatches(reg)
	return nil
}

// Next returns the oldest buffered event, blocking until one arrives, the
// context ends, or the service is closed.
func (s *Service) Next(ctx context.Context) (*Event, error) {
	for {
		if event := s.buffer.Pop(); event != nil {
			return event, nil
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			// Drain anything pushed before the service shut down:
			if event := s.buffer.Pop(); event != nil {
				return event, nil
			}
			return nil, ErrClosed
		}
	}
}

// Close stops the event loop and releases all watches. It is safe to call
// multiple times.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
	})
	return s.closeErr
}

func (s *Service) run() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("file system watcher error", zap.Error(err))
		case <-s.done:
			return
		}
	}
}

func (s *Service) handleEvent(raw fsnotify.Event) {
	event := &Event{
		SeqID: s.seq.Add(1),
		Path:  raw.Name,
		Op:    raw.Op,
		Time:  time.Now(),
	}
	// inotify watches are per directory, so a directory created inside a
	// recursive registration needs its own watch. This must happen before the
	// event is published, or a consumer reacting to it could write into the
	// new directory while it is still unwatched.
	if raw.Op.Has(fsnotify.Create) {
		s.maybeWatchNewDir(raw.Name)
	}

	s.buffer.Push(event)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Service) maybeWatchNewDir(path string) {
	s.mu.Lock()
	var reg *registration
	for _, r := range s.registrations {
		if r.recursive && isUnder(r.path, path) {
			reg = r
			break
		}
	}
	s.mu.Unlock()
	if reg == nil {
		return
	}

	relPath, err := s.provider.GetRelativePathWithinMount(path)
	if err != nil {
		return
	}
	info, err := s.provider.Stat(relPath)
	if err != nil || !info.IsDir() {
		return
	}
	if err := s.watcher.Add(path); err != nil {
		s.log.Warn("unable to watch new directory", zap.String("path", path), zap.Error(err))
		return
	}
	s.mu.Lock()
	reg.dirs = append(reg.dirs, path)
	s.mu.Unlock()
}

func (s *Service) removeWatches(reg *registration) {
	for _, dir := range reg.dirs {
		// The directory may already be gone, which implicitly removed the
		// watch.
		if err := s.watcher.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			s.log.Debug("unable to remove watch", zap.String("path", dir), zap.Error(err))
		}
	}
}

func isUnder(root, path string) bool {
	if root == path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
