// Package watcher follows a trace directory and reports trace files that were
// created or rewritten, batched after a quiet period.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// DefaultQuietPeriod is how long the directory must stay idle before a batch is released.
const DefaultQuietPeriod = 2 * time.Second

type FileWatcher struct {
	watcher *fsnotify.Watcher
	root    string
	match   func(string) bool
	quiet   time.Duration
	pending map[string]struct{}
	batches chan []string
}

// NewFileWatcher watches root and every directory below it. match decides which
// files are reported.
func NewFileWatcher(root string, match func(string) bool, quiet time.Duration) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}

	fw := &FileWatcher{
		watcher: watcher,
		root:    root,
		match:   match,
		quiet:   quiet,
		pending: make(map[string]struct{}),
		batches: make(chan []string, 1),
	}

	if err := fw.addTree(root, false); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return fw, nil
}

// addTree recursively watches dir. When queue is set, matching files already
// present are queued, since they may have been written before the watch existed.
func (fw *FileWatcher) addTree(dir string, queue bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}

		if d.IsDir() {
			if err := fw.watcher.Add(p); err != nil {
				util.LogWarn(fmt.Sprintf("Cannot watch %s: %v", p, err))
			}
			return nil
		}

		if queue && d.Type().IsRegular() && fw.match(p) {
			fw.pending[p] = struct{}{}
		}
		return nil
	})
}

// Start processes events until ctx is done. Batches is closed afterwards.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.processEvents(ctx)
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.batches)

	timer := time.NewTimer(fw.quiet)
	timer.Stop()
	defer timer.Stop()
	var quietC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.handle(event) {
				timer.Reset(fw.quiet)
				quietC = timer.C
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue running
			util.LogError("File monitoring error: " + err.Error())

		case <-quietC:
			quietC = nil
			batch := fw.flush()
			if len(batch) == 0 {
				continue
			}
			select {
			case fw.batches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handle records event and reports whether the quiet timer should restart.
func (fw *FileWatcher) handle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}

	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := fw.addTree(event.Name, true); err != nil {
				util.LogWarn(fmt.Sprintf("Cannot watch new directory %s: %v", event.Name, err))
			}
			return len(fw.pending) > 0
		}
		return false
	}

	if !info.Mode().IsRegular() || !fw.match(event.Name) {
		return false
	}
	util.LogDebug(fmt.Sprintf("Trace file %s: %s", event.Op.String(), event.Name))
	fw.pending[event.Name] = struct{}{}
	return true
}

func (fw *FileWatcher) flush() []string {
	batch := make([]string, 0, len(fw.pending))
	for path := range fw.pending {
		batch = append(batch, path)
	}
	sort.Strings(batch)
	clear(fw.pending)
	return batch
}

// Batches delivers sorted lists of changed trace files.
func (fw *FileWatcher) Batches() <-chan []string {
	return fw.batches
}

func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
