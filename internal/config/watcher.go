package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/adapipe/engine/internal/perr"
)

// Watcher watches a directory of pipeline definition files (one
// PipelineConfig per *.yaml file, keyed by filename without extension) and
// reloads them as they're created, edited, or removed, so a long-running
// orchestrator host picks up new or changed pipelines without a restart.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	mu      sync.RWMutex
	defs    map[string]PipelineConfig
	onError func(error)
}

// NewWatcher starts watching dir. onError, if non-nil, receives errors
// encountered while reloading a changed file; a bad file is skipped rather
// than torn down the whole watcher.
func NewWatcher(dir string, onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, perr.Wrap(perr.KindIO, err, "create pipeline definitions watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, perr.IO(err, "watch pipeline definitions directory %q", dir)
	}

	w := &Watcher{dir: dir, watcher: fw, defs: make(map[string]PipelineConfig), onError: onError}
	if err := w.loadAll(); err != nil {
		fw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) loadAll() error {
	var entries []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(w.dir, pattern))
		if err != nil {
			return perr.IO(err, "list pipeline definitions directory %q", w.dir)
		}
		entries = append(entries, matches...)
	}
	for _, path := range entries {
		if err := w.reload(path); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.forget(event.Name)
			default:
				if err := w.reload(event.Name); err != nil && w.onError != nil {
					w.onError(err)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return perr.IO(err, "read pipeline definition %q", path)
	}
	var p PipelineConfig
	if err := yaml.Unmarshal(data, &p); err != nil {
		return perr.Wrap(perr.KindInvalidConfiguration, err, "parse pipeline definition %q", path)
	}
	if err := p.Validate(); err != nil {
		return perr.Wrap(perr.KindInvalidConfiguration, err, "pipeline definition %q", path)
	}
	name := pipelineNameFromPath(path)
	if p.Name == "" {
		p.Name = name
	}

	w.mu.Lock()
	w.defs[name] = p
	w.mu.Unlock()
	return nil
}

func (w *Watcher) forget(path string) {
	name := pipelineNameFromPath(path)
	w.mu.Lock()
	delete(w.defs, name)
	w.mu.Unlock()
}

// Get returns the currently loaded pipeline definition by name.
func (w *Watcher) Get(name string) (PipelineConfig, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.defs[name]
	return p, ok
}

// All returns a snapshot of every currently loaded pipeline definition.
func (w *Watcher) All() map[string]PipelineConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]PipelineConfig, len(w.defs))
	for k, v := range w.defs {
		out[k] = v
	}
	return out
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func pipelineNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
}
