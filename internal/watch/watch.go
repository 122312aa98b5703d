// Package watch reports changes to the image files of a directory.
package watch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ivlev/framepick/internal/numbering"
)

// DirWatcher calls a function whenever an image file appears in, disappears
// from or is renamed within the watched directory. Only one directory is
// watched at a time.
type DirWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	onChange func(name string)
	log      *zap.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

// New starts a watcher with no directory. onChange runs on the watcher's
// goroutine.
func New(log *zap.Logger, onChange func(name string)) (*DirWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dw := &DirWatcher{
		watcher:  w,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}
	dw.wg.Add(1)
	go dw.loop()
	return dw, nil
}

// Watch switches to dir. Watching the current directory again is a no-op.
func (w *DirWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir = filepath.Clean(dir)
	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		if err := w.watcher.Remove(w.dir); err != nil {
			w.log.Debug("failed to unwatch directory", zap.String("dir", w.dir), zap.Error(err))
		}
		w.dir = ""
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dir = dir
	w.log.Debug("watching directory", zap.String("dir", dir))
	return nil
}

func (w *DirWatcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Close stops the watcher. It is safe to call more than once.
func (w *DirWatcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *DirWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if relevant(event) {
				w.onChange(filepath.Base(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("directory watcher error", zap.Error(err))
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return numbering.IsImage(filepath.Base(event.Name))
}
