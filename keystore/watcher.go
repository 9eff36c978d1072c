package keystore

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kbukum/asrgate/component"
	"github.com/kbukum/asrgate/logger"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a Store when its key file changes. It watches the parent
// directory so editors that replace the file by rename are seen too.
type Watcher struct {
	store    *Store
	debounce time.Duration
	log      *logger.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// reloaded is signalled after each reload attempt; tests hook it.
	reloaded func(count int, err error)
}

var _ component.Component = (*Watcher)(nil)

// NewWatcher creates a watcher for store.
func NewWatcher(store *Store) *Watcher {
	return &Watcher{
		store:    store,
		debounce: defaultDebounce,
		log:      logger.Get("keystore.watcher"),
	}
}

func (w *Watcher) Name() string { return "keystore-watcher" }

// Start begins watching the key file's directory.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.store.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(runCtx)
	}()
	w.log.Info("watching key file", logger.Fields(logger.FieldPath, w.store.Path()))
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	target := filepath.Clean(w.store.Path())
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			count, err := w.store.Reload()
			if err != nil {
				w.log.Warn("key reload failed, keeping previous keys", logger.ErrorFields("reload", err))
			} else {
				w.log.Info("key file reloaded", logger.Fields("count", count))
			}
			if w.reloaded != nil {
				w.reloaded(count, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("key file watch error", logger.ErrorFields("watch", err))
		}
	}
}

// Stop ends watching.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) Health(ctx context.Context) component.Health {
	if w.watcher == nil {
		return component.Health{Name: w.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: w.Name(), Status: component.StatusHealthy}
}

func (w *Watcher) Describe() component.Description {
	return component.Description{Name: "Key watcher", Type: "fsnotify", Details: w.store.Path()}
}
