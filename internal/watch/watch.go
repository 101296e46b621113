// Package watch turns filesystem events under a set of roots into batches
// of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/agentic-research/ttsync/internal/tags"
)

// DefaultDebounce is the quiet period that closes a batch.
const DefaultDebounce = 100 * time.Millisecond

// ErrClosed reports that the underlying watcher stopped delivering events.
var ErrClosed = errors.New("watch: event stream closed")

// Watcher watches roots recursively. A root may be a single file.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []string
	debounce time.Duration
	log      zerolog.Logger
}

// New starts watching roots. Every root must exist.
func New(roots []string, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, debounce: debounce, log: log.With().Str("component", "watch").Logger()}
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", r, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", r, err)
		}
		w.roots = append(w.roots, abs)
		if !info.IsDir() {
			err = fsw.Add(filepath.Dir(abs))
		} else {
			err = w.addTree(abs)
		}
		if err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string { return w.roots }

func (w *Watcher) Close() error { return w.fsw.Close() }

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && hidden(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func hidden(p string) bool {
	return strings.HasPrefix(filepath.Base(p), ".")
}

// covered reports whether p is one of the roots or inside a directory root.
func (w *Watcher) covered(p string) bool {
	for _, r := range w.roots {
		if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run delivers batches of changed paths to out until ctx ends or the event
// stream fails. Only writes and creations count; renames, removals and
// permission changes are dropped.
func (w *Watcher) Run(ctx context.Context, out chan<- []string) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrClosed
			}
			if !w.accept(ev) {
				continue
			}
			w.log.Trace().Str("op", ev.Op.String()).Str("path", ev.Name).Msg("event")
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[ev.Name] = struct{}{}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrClosed
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Watcher) accept(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	if !w.covered(ev.Name) {
		return false
	}
	// hidden script and UI files can still be tagged
	if hidden(ev.Name) && tags.NamespaceForFile(ev.Name) == tags.Foreign {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("path", ev.Name).Msg("watch new directory")
			}
		}
	}
	return true
}
