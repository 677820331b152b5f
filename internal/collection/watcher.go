package collection

import (
	"fmt"
	"sync"

	"annotator/internal/logging"
	"annotator/internal/mediatypes"
	"annotator/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports membership changes (images created, removed or renamed) in
// an indexed directory. It never re-indexes: the callback only signals that
// the sequence held by a session is stale, and rescanning stays an explicit
// call.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Watch starts watching dir. onChange is called from the watcher goroutine
// for each membership event affecting a collection image.
func Watch(dir string, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.CollectionWatcherErrors.Inc()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		metrics.CollectionWatcherErrors.Inc()
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()

	logging.Debug("Collection watcher started for %s", dir)
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Collection watcher error: %v", err)
			metrics.CollectionWatcherErrors.Inc()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	metrics.CollectionWatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if !mediatypes.IsCollectionImage(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if w.onChange != nil {
		w.onChange(event.Name)
	}
}

// eventType returns a string representation of the fsnotify operation
func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
