package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/adcanvas/internal/project"
	"github.com/starford/adcanvas/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

const (
	// settleDelay batches the create/write bursts a single save produces.
	settleDelay    = 150 * time.Millisecond
	reconcileDelay = 200 * time.Millisecond
)

// watcher keeps the catalog in step with project files changed outside the
// service: hand-copied exports, synced folders, deletions in a file manager.
type watcher struct {
	db     ProjectIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	fsw *fsnotify.Watcher
	// pending maps a relative path to whether its first event was a create.
	pending map[string]bool
}

// Watch starts an fsnotify watcher on the project directory and processes
// file change events until ctx is cancelled. It calls cb (if non-nil) after
// each index mutation that changed the catalog.
//
// Writes are settled briefly and skipped when the catalog already holds the
// file's checksum, so projects saved through the service are not announced
// twice. Rename events trigger a reconciliation pass.
func Watch(ctx context.Context, db ProjectIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addDirsRecursive(fsw, root); err != nil {
		return err
	}

	w := &watcher{
		db:      db,
		store:   store,
		root:    root,
		logger:  logger,
		cb:      cb,
		fsw:     fsw,
		pending: make(map[string]bool),
	}
	logger.Info("watcher: started", slog.String("root", root))
	return w.loop(ctx)
}

func (w *watcher) loop(ctx context.Context) error {
	settle := newDebounce(settleDelay)
	reconcile := newDebounce(reconcileDelay)
	defer settle.stop()
	defer reconcile.stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-settle.c():
			w.flush()

		case <-reconcile.c():
			w.reconcile()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 && w.watchDir(ev.Name) {
				continue
			}
			if !isProjectPath(ev.Name) {
				continue
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.pending[rel] = w.pending[rel] || ev.Op&fsnotify.Create != 0
				settle.reset()

			case ev.Op&fsnotify.Remove != 0:
				delete(w.pending, rel)
				w.remove(rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old path only; the new one arrives
				// as a Create when it stays inside a watched directory.
				delete(w.pending, rel)
				w.remove(rel)
				reconcile.reset()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// watchDir adds a newly created directory to the watch list and indexes the
// project files already inside it. It reports whether path was a directory.
func (w *watcher) watchDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if err := addDirsRecursive(w.fsw, path); err != nil {
		w.logger.Warn("watcher: add new dir failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isProjectPath(p) {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, p); relErr == nil {
			w.refresh(filepath.ToSlash(rel), true)
		}
		return nil
	})
	return true
}

func (w *watcher) flush() {
	for rel, created := range w.pending {
		w.refresh(rel, created)
	}
	clear(w.pending)
}

// refresh reindexes rel unless the catalog already has its content.
func (w *watcher) refresh(rel string, created bool) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	known, _ := w.db.GetChecksum(rel)
	if known == storage.Checksum(data) {
		return
	}
	if err := IndexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	kind := "updated"
	if created || known == "" {
		kind = "created"
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

// remove drops rel from the catalog. Paths the catalog never held, or
// already dropped, produce no callback.
func (w *watcher) remove(rel string) {
	if known, _ := w.db.GetChecksum(rel); known == "" {
		return
	}
	if err := w.db.DeleteProject(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify("deleted", rel)
}

// reconcile removes catalog entries without a file on disk and indexes
// files the catalog is missing or holds a stale checksum for.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if checksums[p] != cs {
			w.refresh(p, checksums[p] == "")
		}
	}
}

func (w *watcher) notify(kind, rel string) {
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// debounce is a resettable one-shot timer usable in a select.
type debounce struct {
	d     time.Duration
	timer *time.Timer
}

func newDebounce(d time.Duration) *debounce {
	return &debounce{d: d}
}

func (b *debounce) reset() {
	if b.timer == nil {
		b.timer = time.NewTimer(b.d)
		return
	}
	b.timer.Reset(b.d)
}

// c returns the timer channel, or nil (never ready) before the first reset.
func (b *debounce) c() <-chan time.Time {
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

func (b *debounce) stop() {
	if b.timer != nil {
		b.timer.Stop()
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

// isProjectPath skips hidden files such as in-flight atomic-write temps.
func isProjectPath(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".") && project.IsProjectFile(path)
}
