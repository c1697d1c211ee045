// Copyright 2025 James Ross

// Package watcher supplies debounced filesystem change events that trigger
// targeted FolderScan jobs instead of waiting for the next scheduled scan.
// Grounded on the ManuGH-xg2g proxy package's fsnotify.Watcher usage (a
// select loop over watcher.Events/watcher.Errors with a timer), generalized
// from a single-file wait into a directory-tree watch that batches and
// debounces events per library before enqueuing.
package watcher

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/reelvault/mediaserver/internal/obs"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/store"
	"go.uber.org/zap"
)

// ChangeEvent is one debounced filesystem observation, matching spec §6's
// watcher contract shape.
type ChangeEvent struct {
	LibraryID  string
	Paths      []string
	EventKind  string
	ObservedAt time.Time
}

// Watcher watches one or more library root directories and enqueues a
// FolderScan targeted at the common ancestor of each debounced batch of
// changes.
type Watcher struct {
	fsw            *fsnotify.Watcher
	queue          queue.Service
	log            *zap.Logger
	debounceWindow time.Duration
	maxBatchEvents int

	pathToLibrary map[string]string
}

// New builds a Watcher. Call AddLibrary for each root directory to monitor
// before calling Run.
func New(q queue.Service, debounceWindow time.Duration, maxBatchEvents int, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:            fsw,
		queue:          q,
		log:            log,
		debounceWindow: debounceWindow,
		maxBatchEvents: maxBatchEvents,
		pathToLibrary:  make(map[string]string),
	}, nil
}

// AddLibrary registers root as belonging to libraryID and starts watching
// it (non-recursive; fsnotify has no native recursive watch, so callers
// watching nested trees should call AddLibrary once per subdirectory).
func (w *Watcher) AddLibrary(libraryID, root string) error {
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	w.pathToLibrary[root] = libraryID
	return nil
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run drains fsnotify events, debouncing per library, until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) {
	pending := make(map[string][]ChangeEvent) // libraryID -> batch
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(libraryID string) {
		batch := pending[libraryID]
		delete(pending, libraryID)
		if len(batch) == 0 {
			return
		}
		w.enqueueScan(ctx, libraryID, batch)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			libraryID := w.libraryFor(ev.Name)
			if libraryID == "" {
				continue
			}
			pending[libraryID] = append(pending[libraryID], ChangeEvent{
				LibraryID: libraryID, Paths: []string{ev.Name}, EventKind: ev.Op.String(), ObservedAt: time.Now(),
			})
			if len(pending[libraryID]) >= w.maxBatchEvents {
				flush(libraryID)
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounceWindow)
			timerC = timer.C
		case <-timerC:
			for libraryID := range pending {
				flush(libraryID)
			}
			timerC = nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", obs.Err(err))
		}
	}
}

func (w *Watcher) libraryFor(path string) string {
	best := ""
	bestLen := -1
	for root, lib := range w.pathToLibrary {
		if strings.HasPrefix(path, root) && len(root) > bestLen {
			best = lib
			bestLen = len(root)
		}
	}
	return best
}

func (w *Watcher) enqueueScan(ctx context.Context, libraryID string, batch []ChangeEvent) {
	ancestor := commonAncestor(batch)
	payload, err := json.Marshal(actors.FolderScanPayload{RootPaths: []string{ancestor}})
	if err != nil {
		w.log.Error("failed to marshal watcher-triggered scan payload", obs.Err(err))
		return
	}
	handle, err := w.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:      store.KindFolderScan,
		LibraryID: libraryID,
		Priority:  store.PriorityHigh,
		Payload:   payload,
	})
	if err != nil {
		w.log.Error("watcher failed to enqueue folder scan", obs.String("library_id", libraryID), obs.Err(err))
		return
	}
	w.log.Info("watcher enqueued folder scan",
		obs.String("library_id", libraryID),
		obs.String("job_id", handle.JobID.String()),
		obs.Int("batch_size", len(batch)),
	)
}

func commonAncestor(batch []ChangeEvent) string {
	if len(batch) == 0 {
		return ""
	}
	ancestor := filepath.Dir(batch[0].Paths[0])
	for _, ev := range batch[1:] {
		ancestor = commonPrefix(ancestor, filepath.Dir(ev.Paths[0]))
	}
	return ancestor
}

func commonPrefix(a, b string) string {
	as := strings.Split(a, string(filepath.Separator))
	bs := strings.Split(b, string(filepath.Separator))
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	var out []string
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			break
		}
		out = append(out, as[i])
	}
	return strings.Join(out, string(filepath.Separator))
}
