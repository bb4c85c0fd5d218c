package scanner

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
)

// Watcher supplements the periodic scan poll with event-driven wakeups
// when a project's transcript directory gains a new or modified .jsonl
// file, reducing discovery latency between ticks without changing the
// scan algorithm itself (SPEC_FULL.md §4). Grounded on fsnotify's use in
// kylesnowschwartz-tail-claude (other_examples).
type Watcher struct {
	fsw *fsnotify.Watcher
	log telemetry.Logger
}

// NewWatcher constructs a Watcher. Call AddDir for each transcript
// directory to watch, then Run to start draining events into notify.
func NewWatcher(log telemetry.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Watcher{fsw: fsw, log: log}, nil
}

// AddDir registers dir for watching. Safe to call for directories that do
// not yet exist on disk; the caller is expected to retry once a session
// directory is created.
func (w *Watcher) AddDir(dir string) error {
	return w.fsw.Add(dir)
}

// Close releases the underlying OS watch handles.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run drains filesystem events, invoking notify(path) for every create or
// write event on a .jsonl file, until ctx is canceled.
func (w *Watcher) Run(ctx context.Context, notify func(path string)) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if len(ev.Name) < 6 || ev.Name[len(ev.Name)-6:] != ".jsonl" {
				continue
			}
			notify(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "scanner watch error", "error", err.Error())
		case <-ctx.Done():
			return
		}
	}
}
