package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader loads a configuration file and optionally watches it for changes
// so timeouts and the relay address can be adjusted without a restart.
type Loader struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)

	mu      sync.RWMutex
	current *Config

	close     chan struct{}
	closeOnce sync.Once
}

// NewLoader creates a loader for the given path.
func NewLoader(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &Loader{path: absPath, close: make(chan struct{})}, nil
}

// Load reads and validates the file, retaining the result as current.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch starts monitoring the config file, invoking onChange for every
// change that loads and validates cleanly. Invalid edits keep the previous
// configuration and are logged.
func (l *Loader) Watch(onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.watcher = watcher
	l.onChange = onChange

	go l.watchLoop()

	// Watch the directory: editors typically replace the file on save.
	if err := l.watcher.Add(filepath.Dir(l.path)); err != nil {
		l.watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}
	return nil
}

func (l *Loader) watchLoop() {
	for {
		select {
		case <-l.close:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := l.Load()
			if err != nil {
				slog.Warn("config reload failed, keeping previous configuration",
					"path", l.path, "error", err)
				continue
			}
			if l.onChange != nil {
				l.onChange(cfg)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() { close(l.close) })
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
