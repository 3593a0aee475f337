package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/relaycore/ircd/pkg/logger"
)

// Watcher triggers Store.Rehash when the config file changes on disk, in
// addition to the SIGHUP-driven rehash wired in cmd/ircd. It posts a
// single byte to a wakeup channel rather than calling Rehash directly, so
// the event loop (single-threaded per §5) is the one that actually swaps
// the snapshot, between iterations.
type Watcher struct {
	fsw    *fsnotify.Watcher
	store  *Store
	log    *logger.Logger
	Wakeup chan struct{}
}

func NewWatcher(store *Store, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(store.Get().path); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{fsw: fsw, store: store, log: log, Wakeup: make(chan struct{}, 1)}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				select {
				case w.Wakeup <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher: %v", err)
		}
	}
}

func (w *Watcher) Close() error { return w.fsw.Close() }
