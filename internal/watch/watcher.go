// Package watch keeps a file's partitioning current while the file changes
// on disk.
//
// Changes are detected with fsnotify on the file's directory, so editors
// that save by renaming a temporary file are followed. Bursts of events are
// debounced, the new contents are diffed against the buffer and the
// resulting edits are fed to the partitioner one by one.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/dshills/partscan/internal/logging"
	"github.com/dshills/partscan/internal/partition"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Handler receives the regions changed by one reload.
type Handler func(doc *Document, regions []partition.Region)

// Watcher reloads a Document whenever its file changes.
type Watcher struct {
	path     string
	doc      *Document
	handler  Handler
	debounce time.Duration
	log      logrus.FieldLogger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the file must be quiet before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// New creates a watcher reloading doc from path and reporting to handler.
func New(path string, doc *Document, handler Handler, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		doc:      doc,
		handler:  handler,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logging.Discard()
	}
	w.log = w.log.WithFields(logrus.Fields{"component": "watch", "path": abs})
	return w, nil
}

// Run watches the file until ctx is done. It returns nil when ctx ends and
// an error if watching could not start.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Debug("watching")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")

		case <-timer.C:
			if err := w.Reload(); err != nil {
				w.log.WithError(err).Warn("reload failed")
			}
		}
	}
}

// Reload reads the file and updates the document. A file that does not
// exist is skipped; it is read again once it is recreated.
func (w *Watcher) Reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	regions, err := w.doc.Update(string(data))
	if err != nil {
		return err
	}
	w.log.WithField("regions", len(regions)).Debug("reloaded")
	if len(regions) > 0 && w.handler != nil {
		w.handler(w.doc, regions)
	}
	return nil
}
