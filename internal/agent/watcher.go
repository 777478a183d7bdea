package agent

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/subagents/internal/logging"
)

// DefaultDebounce is the delay between the last file event and the reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a Registry when definition documents change on disk.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// OnReload, when set, is called after every reload with its result.
	OnReload func(err error)

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher watches the registry's existing scope directories.
// Directories that do not exist yet are not watched.
func NewWatcher(registry *Registry, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, s := range registry.Sources().scopes() {
		if s.dir == "" {
			continue
		}
		if err := fw.Add(s.dir); err != nil {
			logging.Debug().Err(err).Str("dir", s.dir).Msg("agent directory not watched")
			continue
		}
		logging.Debug().Str("scope", string(s.scope)).Str("dir", s.dir).Msg("watching agent directory")
	}

	return &Watcher{
		registry: registry,
		watcher:  fw,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

// Stop stops watching and waits for the loop to exit. Later calls are no-ops.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	err := w.watcher.Close()
	if started {
		<-w.doneCh
	}
	return err
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != ".md" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("agent watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	err := w.registry.Reload()
	if err != nil {
		logging.Warn().Err(err).Msg("agent reload completed with errors")
	} else {
		logging.Info().Int("count", w.registry.Count()).Msg("agents reloaded")
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
