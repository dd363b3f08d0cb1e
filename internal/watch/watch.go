// Package watch subscribes to filesystem change notifications under a
// directory tree and routes accepted paths through an indexing callback,
// generalizing the teacher's chunker/embedder watcher to the scanner and
// encoder/frame-selector pipeline.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces duplicate events for the same path within this
// window before indexing runs.
const DefaultDebounce = 500 * time.Millisecond

// DefaultMaxPending bounds the debounce queue; beyond this many distinct
// pending paths, the oldest is dropped and Overflows is incremented. A
// later full scan reconciles anything missed this way.
const DefaultMaxPending = 4096

// Acceptor decides whether path should be indexed (the scanner's
// single-file acceptance pipeline).
type Acceptor interface {
	Decide(path string) (accepted bool, err error)
}

// Indexer processes one accepted path end to end (encode + write sidecar).
type Indexer interface {
	IndexFile(ctx context.Context, path string) error
}

// Watcher watches a directory tree and indexes accepted changes.
type Watcher struct {
	fw       *fsnotify.Watcher
	acceptor Acceptor
	indexer  Indexer
	debounce time.Duration
	maxPending int

	mu       sync.Mutex
	pending  map[string]*time.Timer
	order    []string // insertion order, for overflow eviction

	// indexMu serializes IndexFile calls so one indexer session is never
	// used by two timer goroutines at once.
	indexMu sync.Mutex

	// Overflows counts debounce-queue evictions due to DefaultMaxPending.
	Overflows int
}

// New returns a Watcher that indexes files accepted by acceptor via
// indexer, debouncing duplicate events for debounce (DefaultDebounce if
// zero).
func New(acceptor Acceptor, indexer Indexer, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fw:         fw,
		acceptor:   acceptor,
		indexer:    indexer,
		debounce:   debounce,
		maxPending: DefaultMaxPending,
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Watch adds root (and all subdirectories) to the watch list and processes
// events until ctx is cancelled or an unrecoverable fsnotify error occurs.
func (w *Watcher) Watch(ctx context.Context, root string) error {
	if err := w.addDirRecursive(root); err != nil {
		return err
	}
	defer w.fw.Close()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			if err := w.addDirRecursive(path); err != nil {
				fmt.Fprintf(os.Stderr, "watch: add dir %s: %v\n", path, err)
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	accepted, err := w.acceptor.Decide(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: decide %s: %v\n", path, err)
		return
	}
	if !accepted {
		return
	}

	w.schedule(ctx, path)
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.pending[path]; exists {
		t.Stop()
	} else {
		if len(w.pending) >= w.maxPending && len(w.order) > 0 {
			oldest := w.order[0]
			w.order = w.order[1:]
			if t, ok := w.pending[oldest]; ok {
				t.Stop()
				delete(w.pending, oldest)
				w.Overflows++
			}
		}
		w.order = append(w.order, path)
	}

	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		for i, p := range w.order {
			if p == path {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
		w.mu.Unlock()

		w.indexMu.Lock()
		defer w.indexMu.Unlock()
		if err := w.indexer.IndexFile(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "watch: index %s: %v\n", path, err)
		}
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.order = nil
}

// addDirRecursive adds dir and all non-hidden subdirectories to the
// watcher's subscription list.
func (w *Watcher) addDirRecursive(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("watch: readdir %s: %w", dir, err)
	}
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			if err := w.addDirRecursive(filepath.Join(dir, e.Name())); err != nil {
				fmt.Fprintf(os.Stderr, "watch: skip dir: %v\n", err)
			}
		}
	}
	return nil
}
