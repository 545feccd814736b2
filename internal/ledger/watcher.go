package ledger

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yourview/yourview/internal/media"
	"github.com/yourview/yourview/internal/storage"
)

var errUnrecognised = errors.New("ledger: not a JPEG or PNG file")

// Watch starts an fsnotify watcher on the media root and keeps the ledger in
// step with files added or removed outside the upload API until ctx is
// cancelled. It calls cb (if non-nil) after each ledger change.
//
// Files written by the upload API are already recorded, so their events are
// recognised by etag and produce no callback.
func Watch(ctx context.Context, db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// Renames only report the old name, so a short debounced Sync picks up
	// the new one.
	var resyncTimer *time.Timer
	var resyncCh <-chan time.Time
	scheduleResync := func() {
		if resyncTimer == nil {
			resyncTimer = time.NewTimer(200 * time.Millisecond)
			resyncCh = resyncTimer.C
		} else {
			resyncTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if resyncTimer != nil {
				resyncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-resyncCh:
			if err := Sync(ctx, db, store, logger); err != nil {
				logger.Warn("watcher: resync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleResync()
					continue
				}
			}

			if storage.IsTemp(filepath.Base(ev.Name)) {
				continue
			}
			key, keyErr := store.KeyFor(ev.Name)
			if keyErr != nil || !media.IsImageKey(key) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed, recErr := recordFile(ctx, db, store, key)
				if recErr != nil {
					logger.Warn("watcher: record failed", slog.String("key", key), slog.String("error", recErr.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: recorded", slog.String("key", key), slog.String("op", kind))
				if cb != nil {
					cb(kind, key)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if ev.Op&fsnotify.Rename != 0 {
					scheduleResync()
				}
				if _, getErr := db.Get(ctx, key); getErr != nil {
					continue
				}
				if delErr := db.Delete(ctx, key); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("key", key), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("key", key))
				if cb != nil {
					cb("deleted", key)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
