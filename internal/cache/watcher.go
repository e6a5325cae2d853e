package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ssotoken/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last event for a
// record before reporting it.
const DefaultDebounceInterval = 200 * time.Millisecond

// ChangeKind describes what happened to a record on disk.
type ChangeKind int

const (
	// RecordWritten means the record was created or replaced.
	RecordWritten ChangeKind = iota

	// RecordRemoved means the record no longer exists.
	RecordRemoved
)

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case RecordWritten:
		return "written"
	case RecordRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is a debounced change to one record.
type Change struct {
	ID   string
	Kind ChangeKind
}

// Watcher reports changes to records in a cache directory. It does not know
// who made a change; callers filter out their own writes.
type Watcher struct {
	mu sync.Mutex

	dir      string
	debounce time.Duration
	onChange func(Change)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool

	timers map[string]*time.Timer
}

// NewWatcher creates a watcher for dir that calls onChange from its own
// goroutine.
func NewWatcher(dir string, onChange func(Change)) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: DefaultDebounceInterval,
		onChange: onChange,
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching. The cache directory is created if needed.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return err
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.processEvents(watcher.Events, watcher.Errors)

	logging.Info("CacheWatcher", "Started watching %s for token changes", w.dir)
	return nil
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("CacheWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	id := strings.TrimSuffix(name, fileExt)
	logging.Debug("CacheWatcher", "Cache record %s changed (%s)", id, event.Op)
	w.schedule(id)
}

// schedule debounces events per record; the state on disk when the timer
// fires decides the reported kind.
func (w *Watcher) schedule(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if t, ok := w.timers[id]; ok {
		t.Stop()
	}
	w.timers[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, id)
		running := w.running
		w.mu.Unlock()
		if !running || w.onChange == nil {
			return
		}

		kind := RecordWritten
		if _, err := os.Stat(filepath.Join(w.dir, id+fileExt)); errors.Is(err, os.ErrNotExist) {
			kind = RecordRemoved
		}
		w.onChange(Change{ID: id, Kind: kind})
	})
}

// Stop stops watching and drops pending changes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
	watcher := w.fsWatcher
	w.fsWatcher = nil
	w.mu.Unlock()

	_ = watcher.Close()
	<-w.doneCh
	logging.Debug("CacheWatcher", "Stopped watching %s", w.dir)
}
