package promptcontract

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads a Template whenever its prompt file changes on disk,
// letting an operator fix prompt wording without restarting the server.
type Watcher struct {
	tpl    *Template
	path   string
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher opens an fsnotify watch on tpl's backing directory.
func NewWatcher(tpl *Template) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(tpl.promptsDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{tpl: tpl, path: filepath.Join(tpl.promptsDir, templateFile), fsw: fsw}, nil
}

// Start begins watching in a background goroutine until ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("promptcontract watcher error", "error", err)

		case <-timerC():
			timer = nil
			if err := w.tpl.HotReload(); err != nil {
				slog.Warn("promptcontract hot-reload failed, keeping previous prompt", "error", err)
				continue
			}
			slog.Info("promptcontract: system prompt reloaded", "path", w.path)
		}
	}
}
