package git

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"prdeck/internal/logging"
)

const watchDebounce = 200 * time.Millisecond

// Watcher reports changes to HEAD, the index and local branch refs. Bursts
// of events collapse into one notify call.
type Watcher struct {
	w      *fsnotify.Watcher
	notify func()
	logger logging.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

func NewWatcher(gitDir string, notify func(), logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	watcher := &Watcher{w: fw, notify: notify, logger: logger, done: make(chan struct{})}
	go watcher.loop()
	return watcher, nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.w.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.schedule()
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn("repository watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.notify)
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if filepath.Ext(base) == ".lock" {
		return false
	}
	switch base {
	case "HEAD", "index", "ORIG_HEAD":
		return true
	}
	return filepath.Base(filepath.Dir(event.Name)) == "heads"
}
