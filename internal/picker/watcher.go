package picker

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Signal file suffixes recognised by the Watcher.
const (
	SelectSuffix = ".select"
	CancelSuffix = ".cancel"
)

// Watcher resolves dialogs from files dropped into a signal directory:
// <id>.select containing a url selects, <id>.cancel cancels. Files are removed
// once they resolve a dialog or name one that no longer exists; a rejected
// url is left in place for the next write.
type Watcher struct {
	dir     string
	manager *Manager
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates dir if needed and starts watching it.
func NewWatcher(dir string, manager *Manager, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:     dir,
		manager: manager,
		logger:  logger,
		watcher: fw,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}

func (w *Watcher) watch() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				w.handle(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("picker signal watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(name string) {
	base := filepath.Base(name)

	var err error
	switch {
	case strings.HasSuffix(base, SelectSuffix):
		data, readErr := os.ReadFile(name)
		if readErr != nil {
			return
		}
		url := strings.TrimSpace(string(data))
		if url == "" {
			// Created but not yet written; the write event follows.
			return
		}
		err = w.manager.Select(strings.TrimSuffix(base, SelectSuffix), url)
	case strings.HasSuffix(base, CancelSuffix):
		err = w.manager.Cancel(strings.TrimSuffix(base, CancelSuffix))
	default:
		return
	}

	if err != nil && !errors.Is(err, ErrDialogNotFound) {
		// Possibly caught mid-write; the next write event retries.
		w.logger.Warn("picker signal rejected", "file", base, "error", err)
		return
	}
	if err != nil {
		w.logger.Warn("picker signal for unknown dialog", "file", base, "error", err)
	}
	if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		w.logger.Warn("remove picker signal", "file", base, "error", rmErr)
	}
}
