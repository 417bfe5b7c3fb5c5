package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/source"
)

// DefaultDebounce is how long the watcher waits after the last filesystem
// event before re-ingesting, so editors that write multiple files in a
// burst trigger a single batch.
const DefaultDebounce = 2 * time.Second

// Watcher re-ingests a directory tree whenever its contents change and
// activates each successful version.
type Watcher struct {
	root        string
	coordinator *Coordinator
	store       *index.Store
	src         *source.Filesystem
	logger      *slog.Logger
	debounce    time.Duration
}

// WatcherOpts configures a Watcher.
type WatcherOpts struct {
	// Root is the directory to watch, recursively.
	Root string

	Coordinator *Coordinator
	Store       *index.Store
	Source      *source.Filesystem

	// Debounce overrides DefaultDebounce.
	Debounce time.Duration

	Logger *slog.Logger
}

// NewWatcher creates a directory watcher.
func NewWatcher(o WatcherOpts) (*Watcher, error) {
	if o.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if o.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if o.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}

	return &Watcher{
		root:        o.Root,
		coordinator: o.Coordinator,
		store:       o.Store,
		src:         o.Source,
		logger:      o.Logger,
		debounce:    o.Debounce,
	}, nil
}

// Run watches until the context is cancelled. Each quiet period after a
// burst of events triggers one ingestion batch; the new version becomes
// live only when the batch succeeds.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addRecursive(watcher, w.root); err != nil {
		return err
	}

	w.logger.Info("watching for changes",
		"root", w.root,
		"debounce", w.debounce,
	)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}

			// Watch directories created after startup.
			if event.Op.Has(fsnotify.Create) {
				if err := w.addRecursive(watcher, event.Name); err != nil {
					w.logger.Debug("not watching new path", "path", event.Name, "error", err)
				}
			}

			w.logger.Debug("filesystem event", "op", event.Op.String(), "path", event.Name)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				// Drain a tick that fired while we were handling this
				// event so the reset window starts clean.
				if !timer.Stop() {
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			w.reingest(ctx)
		}
	}
}

// reingest runs one batch and swaps the live pointer on success.
func (w *Watcher) reingest(ctx context.Context) {
	docs, err := w.src.Documents(ctx)
	if err != nil {
		w.logger.Error("collecting documents", "error", err)
		return
	}
	if len(docs) == 0 {
		w.logger.Warn("no documents found, skipping re-ingestion")
		return
	}

	report, err := w.coordinator.IngestBatch(ctx, docs)
	if err != nil {
		w.logger.Error("re-ingestion failed", "error", err)
		return
	}

	if err := w.store.Activate(ctx, report.VersionID); err != nil {
		w.logger.Error("activating version",
			"version", report.VersionID,
			"error", err,
		)
		return
	}

	w.logger.Info("re-ingested and activated",
		"version", report.VersionID,
		"records", report.Records,
		"failed", len(report.Failed),
	)
}

// addRecursive watches dir and every subdirectory beneath it.
func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// ignored filters hidden paths like .git and .corpus.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
