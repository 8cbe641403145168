// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a change to the contents of a watched file.
type Change struct {
	Event []fsnotify.Event
	// Data is the new content of the file. It is nil
	// if the file has been removed.
	Data []byte
	Sum  Sum
	Err  error
}

// Op returns an aggregated fsnotify.Op for all elements of the receivers'
// Event field.
func (c Change) Op() fsnotify.Op {
	switch len(c.Event) {
	case 0:
		return 0
	case 1:
		return c.Event[0].Op
	default:
		var op fsnotify.Op
		for _, o := range c.Event {
			op |= o.Op
		}
		return op
	}
}

// Watcher collects raw fsnotify.Events for a single file and filters for
// changes to its content.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	once     sync.Once
	done     chan struct{}
	changes  chan<- Change
	sum      *Sum
	log      *slog.Logger
}

// NewWatcher starts an fsnotify.Watcher for the file at path, sending
// content changes on the changes channel. The current content is sent
// as the first change. The file's directory is watched so that editors
// that replace the file are followed. The debounce parameter specifies how
// long to wait after an fsnotify.Event before reading the file to ensure
// that writes will be reflected in the content checksum. If it is less
// than zero, FileDebounce is used. Changes that do not alter the content
// of the file are not sent. The watcher runs until ctx is cancelled or
// Close is called.
func NewWatcher(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, errors.New("cannot watch directory")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		changes:  changes,
		log:      log.With(slog.String("component", "watcher")),
	}
	go func() {
		defer close(w.done)
		w.read(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
		w.process(ctx)
	}()
	return w, nil
}

// Close stops the watcher and waits for it to finish.
func (w *Watcher) Close() error {
	w.once.Do(func() { close(w.stop) })
	err := w.watcher.Close()
	<-w.done
	return err
}

// process watches the Watcher's fsnotify.Watcher events performing
// filtering for the watched file.
func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				w.log.LogAttrs(ctx, slog.LevelDebug, "write", slog.Any("event", eventValue{ev}))
				select {
				case <-ctx.Done():
					return
				case <-w.stop:
					return
				case <-time.After(w.debounce):
				}
				w.read(ctx, ev)

			// Renames are seen as a rename/create pair. The content
			// hash is retained so that replacement with identical
			// content is not reported.
			case ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove", slog.Any("event", eventValue{ev}))
				w.send(ctx, Change{Event: []fsnotify.Event{ev}})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

// read reads the watched file and sends its content if it differs from
// the last content sent.
func (w *Watcher) read(ctx context.Context, ev fsnotify.Event) {
	b, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Removed before we could read it. The
			// removal event will follow.
			return
		}
		w.log.LogAttrs(ctx, slog.LevelError, "read file", slog.Any("error", err))
		w.send(ctx, Change{Event: []fsnotify.Event{ev}, Err: err})
		return
	}
	sum := Sum(sha1.Sum(b))
	if w.sum.Equal(&sum) {
		w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.Any("sum", &sum))
		return
	}
	w.log.LogAttrs(ctx, slog.LevelDebug, "set hash", slog.Any("sum", &sum), slog.Any("previous", w.sum))
	w.sum = &sum
	w.send(ctx, Change{Event: []fsnotify.Event{ev}, Data: b, Sum: sum})
}

func (w *Watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case <-w.stop:
	case w.changes <- c:
	}
}
