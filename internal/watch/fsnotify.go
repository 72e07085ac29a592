package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/janhuddel/ghciwatch/internal/pathset"
)

// FSNotifyWatcher is the default Watcher, backed by github.com/fsnotify/fsnotify
// and a simple debounce timer. It watches every directory under each root
// recursively, following new directories as they're created.
type FSNotifyWatcher struct {
	w        *fsnotify.Watcher
	debounce time.Duration

	batches chan Batch
	errs    chan error
	closeMu sync.Mutex
	closed  bool
}

// NewFSNotifyWatcher creates a watcher rooted at roots, each of which must
// already exist (an unresolvable root is a configuration error). debounce
// is the window events are collapsed within; no default is applied here,
// callers pass config.DefaultDebounce when the user gave none.
func NewFSNotifyWatcher(roots []string, debounce time.Duration) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	fw := &FSNotifyWatcher{
		w:        w,
		debounce: debounce,
		batches:  make(chan Batch),
		errs:     make(chan error, 1),
	}

	for _, root := range roots {
		if err := fw.addRecursive(root); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch: watch root %q: %w", root, err)
		}
	}

	go fw.run()
	return fw, nil
}

func (fw *FSNotifyWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.w.Add(path)
		}
		return nil
	})
}

func opFromFsnotify(op fsnotify.Op) (pathset.EventOp, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return pathset.OpCreate, true
	case op&fsnotify.Write != 0:
		return pathset.OpModify, true
	case op&fsnotify.Remove != 0:
		return pathset.OpDelete, true
	case op&fsnotify.Rename != 0:
		return pathset.OpRename, true
	default:
		return 0, false // Chmod and anything else is not reload/restart relevant
	}
}

// run accumulates raw fsnotify events into a pending batch and flushes it
// debounce after the last event arrives, matching the "debounce
// window is enforced by the watcher interface" contract.
func (fw *FSNotifyWatcher) run() {
	defer close(fw.batches)

	pending := make(map[string]pathset.EventOp)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		events := make([]pathset.Event, 0, len(pending))
		for path, op := range pending {
			events = append(events, pathset.Event{Path: path, Op: op})
		}
		pending = make(map[string]pathset.EventOp)
		fw.batches <- Batch{Events: events}
	}

	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				flush()
				return
			}
			op, relevant := opFromFsnotify(ev.Op)
			if !relevant {
				continue
			}
			if op == pathset.OpCreate {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = fw.addRecursive(ev.Name)
				}
			}
			pending[ev.Name] = op
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(fw.debounce)
			}
			timerC = timer.C
		case <-timerC:
			flush()
			timerC = nil
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.errs <- err:
			default:
			}
		}
	}
}

// Batches implements Watcher.
func (fw *FSNotifyWatcher) Batches() <-chan Batch { return fw.batches }

// Errors implements Watcher.
func (fw *FSNotifyWatcher) Errors() <-chan error { return fw.errs }

// Close implements Watcher.
func (fw *FSNotifyWatcher) Close() error {
	fw.closeMu.Lock()
	defer fw.closeMu.Unlock()
	if fw.closed {
		return nil
	}
	fw.closed = true
	return fw.w.Close()
}
