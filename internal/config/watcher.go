package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called with the newly loaded config after the file changes.
type ChangeHandler func(cfg *Config)

// FileHandler is called with the path of a watched auxiliary file that changed.
type FileHandler func(path string)

// Watcher watches the config file, and optionally the world snapshot, for changes.
// Changes are debounced (300ms) to avoid rapid reloads.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopChan chan struct{}

	mu           sync.Mutex
	handlers     []ChangeHandler
	files        map[string][]FileHandler
	timers       map[string]*time.Timer
	started      bool
	stopped      bool
	watchedFiles map[string]bool
	watchedDirs  map[string]bool
}

// NewWatcher creates a config file watcher.
func NewWatcher(configPath string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:         filepath.Clean(configPath),
		watcher:      w,
		debounce:     300 * time.Millisecond,
		files:        make(map[string][]FileHandler),
		timers:       make(map[string]*time.Timer),
		watchedFiles: make(map[string]bool),
		watchedDirs:  make(map[string]bool),
	}, nil
}

// OnChange registers a handler to be called when the config changes.
func (cw *Watcher) OnChange(handler ChangeHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, handler)
}

// OnFileChange registers a handler for another file, such as the world snapshot.
// Must be called before Start.
func (cw *Watcher) OnFileChange(path string, handler FileHandler) {
	if path == "" {
		return
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	path = filepath.Clean(path)
	cw.files[path] = append(cw.files[path], handler)
}

// Start begins watching. Directories are watched rather than files so that
// editors which replace the file on save are still observed.
func (cw *Watcher) Start() error {
	cw.mu.Lock()
	paths := []string{cw.path}
	for p := range cw.files {
		paths = append(paths, p)
	}
	cw.mu.Unlock()

	for _, p := range paths {
		if err := cw.addDir(filepath.Dir(p)); err != nil {
			return err
		}
	}

	cw.mu.Lock()
	for _, p := range paths {
		cw.watchedFiles[p] = true
	}
	cw.started = true
	cw.mu.Unlock()

	cw.stopChan = make(chan struct{})
	go cw.watchLoop()

	slog.Info("config watcher started", "path", cw.path, "files", len(paths))
	return nil
}

// Watch registers a handler for another file. Unlike OnFileChange it may be
// called while the watcher is running.
func (cw *Watcher) Watch(path string, handler FileHandler) error {
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)

	cw.mu.Lock()
	started := cw.started
	cw.mu.Unlock()
	if started {
		if err := cw.addDir(filepath.Dir(path)); err != nil {
			return err
		}
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.files[path] = append(cw.files[path], handler)
	if started {
		cw.watchedFiles[path] = true
	}
	return nil
}

// Unwatch drops every handler registered for path. The config file itself
// stays watched.
func (cw *Watcher) Unwatch(path string) {
	path = filepath.Clean(path)
	cw.mu.Lock()
	defer cw.mu.Unlock()
	delete(cw.files, path)
	if path != cw.path {
		delete(cw.watchedFiles, path)
	}
}

// addDir adds dir to the fsnotify watcher once
func (cw *Watcher) addDir(dir string) error {
	cw.mu.Lock()
	seen := cw.watchedDirs[dir]
	cw.mu.Unlock()
	if seen {
		return nil
	}
	if err := cw.watcher.Add(dir); err != nil {
		return err
	}
	cw.mu.Lock()
	cw.watchedDirs[dir] = true
	cw.mu.Unlock()
	return nil
}

// Stop halts the file watcher.
func (cw *Watcher) Stop() {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return
	}
	cw.stopped = true
	for _, t := range cw.timers {
		t.Stop()
	}
	cw.mu.Unlock()

	if cw.stopChan != nil {
		close(cw.stopChan)
	}
	_ = cw.watcher.Close()
	slog.Info("config watcher stopped")
}

func (cw *Watcher) watchLoop() {
	for {
		select {
		case <-cw.stopChan:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			name := filepath.Clean(event.Name)
			cw.mu.Lock()
			watched := cw.watchedFiles[name]
			cw.mu.Unlock()
			if !watched {
				continue
			}

			cw.schedule(name)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// schedule debounces reloads per file: the timer is reset on each change
func (cw *Watcher) schedule(name string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.stopped {
		return
	}
	if t, ok := cw.timers[name]; ok {
		t.Stop()
	}
	cw.timers[name] = time.AfterFunc(cw.debounce, func() {
		if name == cw.path {
			cw.reload()
		}
		cw.notifyFile(name)
	})
}

func (cw *Watcher) reload() {
	slog.Info("config file changed, reloading", "path", cw.path)

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}

	cw.mu.Lock()
	handlers := make([]ChangeHandler, len(cw.handlers))
	copy(handlers, cw.handlers)
	cw.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}

	slog.Info("config reloaded successfully")
}

func (cw *Watcher) notifyFile(name string) {
	cw.mu.Lock()
	handlers := make([]FileHandler, len(cw.files[name]))
	copy(handlers, cw.files[name])
	cw.mu.Unlock()

	for _, h := range handlers {
		h(name)
	}
}
