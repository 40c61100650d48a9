package catalog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// BootstrapLoader produces one Snapshot from whatever source a compile
// host keeps its committed schema facts in (an SDL file tree, a schema
// registry, etc). It is supplied by the caller; this package knows
// nothing about the storage format (spec.md §1: "the compiler does not
// own the... does not persist schema").
type BootstrapLoader func() (*Snapshot, error)

// Watcher holds the current Snapshot for a long-lived compile host and
// swaps it for a freshly loaded one whenever the watched schema source
// changes on disk, matching spec.md §3.2's lifecycle rule: "DDL produces
// a new snapshot; in-flight compilations do not observe concurrent
// DDL". Readers call Current and keep whatever *Snapshot they got for
// the duration of one compile; a later Current call returns the new
// epoch without disturbing compiles already in flight, since Snapshot
// is itself immutable (spec.md §5).
//
// Grounded in the teacher's config/schema hot-reload idiom (a
// fsnotify.Watcher feeding a single-assignment atomic pointer) rather
// than the teacher's reflection-based schema loader, which has no
// runtime reload path of its own.
type Watcher struct {
	load BootstrapLoader

	cur atomic.Pointer[Snapshot]

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	nextErr chan error
	closed  chan struct{}
}

// NewWatcher loads an initial Snapshot via load and returns a Watcher
// ready to serve Current(); it does not yet watch any path.
func NewWatcher(load BootstrapLoader) (*Watcher, error) {
	snap, err := load()
	if err != nil {
		return nil, fmt.Errorf("velox/catalog: initial bootstrap: %w", err)
	}
	w := &Watcher{load: load, closed: make(chan struct{})}
	w.cur.Store(snap)
	return w, nil
}

// Current returns the most recently loaded Snapshot. Safe for
// concurrent use by many compiling goroutines (spec.md §5: "Multiple
// compilations may run in parallel on distinct threads; they share the
// catalog snapshot by immutable reference").
func (w *Watcher) Current() *Snapshot {
	return w.cur.Load()
}

// WatchPaths starts an fsnotify watch on each path (typically the
// directory holding committed SDL/DDL fact files); any write, create,
// remove or rename event triggers a reload via the Watcher's BootstrapLoader. Reload
// errors are swallowed and the previous Snapshot stays live — a bad
// on-disk edit must not take down a running compile host — but are
// also delivered on the channel returned by Errors() so a caller can
// log them.
func (w *Watcher) WatchPaths(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("velox/catalog: new watcher: %w", err)
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return fmt.Errorf("velox/catalog: watch %q: %w", p, err)
		}
	}
	w.fsw = fsw
	w.nextErr = make(chan error, 1)

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			snap, err := w.load()
			if err != nil {
				select {
				case w.nextErr <- fmt.Errorf("velox/catalog: reload after %s: %w", ev.Name, err):
				default:
				}
				continue
			}
			snap.Epoch = w.cur.Load().Epoch + 1
			w.cur.Store(snap)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.nextErr <- err:
			default:
			}
		case <-w.closed:
			return
		}
	}
}

// Errors returns the channel reload/watch errors are delivered on. It
// is buffered 1; a caller that doesn't drain it simply misses
// subsequent errors until it does, it never blocks the reload loop.
func (w *Watcher) Errors() <-chan error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextErr
}

// Close stops the underlying fsnotify watcher. Current keeps returning
// the last loaded Snapshot after Close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.closed)
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}
