// Package reload provides configuration hot reload. Changes are applied to
// the orchestrator between passes; a pass in progress keeps its settings.
package reload

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher watches a configuration file for changes and emits reload events.
type ConfigWatcher struct {
	configPath       string
	debounceInterval time.Duration
	watcher          *fsnotify.Watcher
	changeCh         chan struct{}
	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
	doneCh           chan struct{}
}

// NewConfigWatcher creates a new configuration file watcher.
func NewConfigWatcher(configPath string, debounceInterval time.Duration) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	if debounceInterval <= 0 {
		debounceInterval = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &ConfigWatcher{
		configPath:       configPath,
		debounceInterval: debounceInterval,
		watcher:          watcher,
		changeCh:         make(chan struct{}, 1),
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}, nil
}

// Start begins watching the configuration file for changes.
// The returned channel receives one value per debounced burst of writes and
// is closed when the watcher stops.
func (cw *ConfigWatcher) Start(ctx context.Context) (<-chan struct{}, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return nil, fmt.Errorf("watcher already running")
	}

	// Watch the directory, not the file: editors and ConfigMaps replace the
	// file by rename.
	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	cw.running = true
	go cw.processEvents(ctx)

	return cw.changeCh, nil
}

// Stop stops watching the configuration file and waits for the event loop
// to exit.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		cw.watcher.Close()
		return
	}
	cw.running = false
	close(cw.stopCh)
	cw.mu.Unlock()

	<-cw.doneCh
	cw.watcher.Close()
}

// processEvents handles file system events with debouncing. It owns changeCh
// and closes it on exit.
func (cw *ConfigWatcher) processEvents(ctx context.Context) {
	defer close(cw.doneCh)
	defer close(cw.changeCh)

	var debounceTimer *time.Timer
	var timerCh <-chan time.Time
	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-cw.stopCh:
			stopTimer()
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				stopTimer()
				return
			}
			if !cw.isConfigFileEvent(event) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				stopTimer()
				debounceTimer = time.NewTimer(cw.debounceInterval)
				timerCh = debounceTimer.C
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				stopTimer()
				return
			}
			log.Printf("[WARN] Config watcher error: %v", err)

		case <-timerCh:
			select {
			case cw.changeCh <- struct{}{}:
			default:
				// a change is already pending
			}
			timerCh = nil
		}
	}
}

// isConfigFileEvent checks if the event is for our configuration file.
func (cw *ConfigWatcher) isConfigFileEvent(event fsnotify.Event) bool {
	eventPath := filepath.Clean(event.Name)
	configPath := filepath.Clean(cw.configPath)

	if eventPath == configPath {
		return true
	}

	// ConfigMap volumes swap a ..data symlink atomically
	return filepath.Base(eventPath) == "..data" && filepath.Dir(eventPath) == filepath.Dir(configPath)
}
