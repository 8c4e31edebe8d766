package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/refresh"
	"github.com/blackwell-systems/modsync/internal/scanner"
)

// Refresher runs a refresh.
type Refresher interface {
	Refresh(ctx context.Context, force bool) ([]mods.Mod, error)
}

// Watcher triggers refreshes on mods directory changes.
type Watcher struct {
	dir       string
	refresher Refresher
	debounce  time.Duration
	logger    *slog.Logger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Watcher for dir.
func New(dir string, r Refresher, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if r == nil {
		return nil, fmt.Errorf("refresher cannot be nil")
	}
	if debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s", debounce)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{
		dir:       dir,
		refresher: r,
		debounce:  debounce,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches the directory until Stop is called or ctx is done.
// Refreshes run with ctx.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("watching mods directory", "path", w.dir, "debounce", w.debounce)
	return nil
}

// Stop ends watching and waits for a pending refresh to return.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("mods directory changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	w.logger.Info("mods directory changed, refreshing")
	_, err := w.refresher.Refresh(ctx, false)
	switch {
	case err == nil:
	case errors.Is(err, refresh.ErrInProgress):
		w.logger.Debug("refresh already running, change will be picked up by it or the next run")
	default:
		w.logger.Warn("refresh after directory change failed", "error", err)
	}
}

// relevant reports whether ev changes the set of installed archives.
func relevant(ev fsnotify.Event) bool {
	if !scanner.IsArchive(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
