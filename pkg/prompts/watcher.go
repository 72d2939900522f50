package prompts

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Set whenever a template in its override directory changes
type Watcher struct {
	set      *Set
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a watcher for set's override directory
func NewWatcher(set *Set, debounce time.Duration) (*Watcher, error) {
	if set.Dir() == "" {
		return nil, fmt.Errorf("prompt set has no override directory")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	return &Watcher{
		set:      set,
		watcher:  watcher,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the override directory
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.set.Dir()); err != nil {
		return fmt.Errorf("failed to watch prompt directory: %w", err)
	}

	go w.eventLoop()

	w.set.logger.Info().Str("path", w.set.Dir()).Msg("Prompt watcher started")
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".tmpl" {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.set.logger.Error().Err(err).Msg("Prompt watcher error")

		case <-w.done:
			return
		}
	}
}

// scheduleReload coalesces bursts of events into a single reload
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if err := w.set.Reload(); err != nil {
			w.set.logger.Error().Err(err).Msg("Failed to reload prompt templates, keeping previous ones")
		}
	})
}
