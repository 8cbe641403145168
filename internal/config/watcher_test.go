// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kortschak/animplay/internal/locked"
	"github.com/kortschak/animplay/internal/slogext"
)

const watched = "anim.apng"

var operations = []struct {
	name string
	// want is the content of the expected
	// change, or nil if no change is expected.
	want    *string
	removed bool
	fn      func(dir string) error
}{
	{
		name: "no_semantic_change", fn: func(dir string) error {
			return create(dir, watched, 0o644, "frames v1")
		},
	},
	{
		name: "write", want: ptr("frames v2"), fn: func(dir string) error {
			return create(dir, watched, 0o644, "frames v2")
		},
	},
	{
		name: "other_file", fn: func(dir string) error {
			return create(dir, "other.apng", 0o644, "other frames")
		},
	},
	{
		name: "replace", want: ptr("frames v3"), fn: func(dir string) error {
			err := create(dir, "tmp.apng", 0o644, "frames v3")
			if err != nil {
				return err
			}
			return mv(dir, "tmp.apng", watched)
		},
	},
	{
		name: "replace_same", fn: func(dir string) error {
			err := create(dir, "tmp.apng", 0o644, "frames v3")
			if err != nil {
				return err
			}
			return mv(dir, "tmp.apng", watched)
		},
	},
	{
		name: "remove", removed: true, fn: func(dir string) error {
			return rm(dir, watched)
		},
	},
}

func create(dir, name string, perm fs.FileMode, data string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(data), perm)
}

func mv(dir, from, to string) error {
	return os.Rename(filepath.Join(dir, from), filepath.Join(dir, to))
}

func rm(dir, name string) error {
	return os.RemoveAll(filepath.Join(dir, name))
}

func TestWatcher(t *testing.T) {
	var logBuf locked.BytesBuffer
	log := slog.New(slogext.NewJSONHandler(&logBuf, &slogext.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: slogext.NewAtomicBool(*lines),
	}))
	defer func() {
		if *verbose {
			t.Logf("log:\n%s\n", &logBuf)
		}
	}()

	dir := t.TempDir()
	err := create(dir, watched, 0o644, "frames v1")
	if err != nil {
		t.Fatalf("failed to create watched file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := make(chan Change)
	w, err := NewWatcher(ctx, filepath.Join(dir, watched), stream, -1, log)
	if err != nil {
		t.Fatalf("unexpected error returned by NewWatcher: %v", err)
	}
	defer w.Close()

	select {
	case <-time.After(time.Second):
		t.Fatal("did not receive initial content in time")
	case got := <-stream:
		if string(got.Data) != "frames v1" || got.Op() != fsnotify.Create {
			t.Errorf("unexpected initial change: %v %q", got.Op(), got.Data)
		}
		if want := Sum(sha1.Sum([]byte("frames v1"))); got.Sum != want {
			t.Errorf("unexpected sum: got:%s want:%s", &got.Sum, &want)
		}
	}

	for _, op := range operations {
		err := op.fn(dir)
		if err != nil {
			t.Errorf("unexpected error running operation %q: %v", op.name, err)
		}
		var (
			got Change
			ok  bool
		)
		timer := time.NewTimer(200 * time.Millisecond)
		select {
		case <-timer.C:
		case got, ok = <-stream:
			timer.Stop()
		}
		expected := op.want != nil || op.removed
		if ok != expected {
			if ok {
				t.Errorf("unexpected %q change: %v %q", op.name, got.Op(), got.Data)
			} else {
				t.Errorf("did not receive %q change in time", op.name)
			}
			continue
		}
		if !ok {
			continue
		}
		if got.Err != nil {
			t.Errorf("unexpected error for %q: %v", op.name, got.Err)
		}
		for _, e := range got.Event {
			if filepath.Base(e.Name) != watched {
				t.Errorf("unexpected event name for %q: %s", op.name, e.Name)
			}
		}
		switch {
		case op.removed:
			if got.Data != nil || !got.Op().Has(fsnotify.Remove) && !got.Op().Has(fsnotify.Rename) {
				t.Errorf("unexpected removal change for %q: %v %q", op.name, got.Op(), got.Data)
			}
		case string(got.Data) != *op.want:
			t.Errorf("unexpected content for %q: got:%q want:%q", op.name, got.Data, *op.want)
		}
	}

	err = w.Close()
	if err != nil {
		t.Errorf("unexpected error closing watcher: %v", err)
	}
}

func TestWatcherErrors(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := make(chan Change)
	_, err := NewWatcher(ctx, filepath.Join(dir, "missing.apng"), stream, -1, nil)
	if err == nil {
		t.Error("expected error for missing file")
	}
	_, err = NewWatcher(ctx, dir, stream, -1, nil)
	if err == nil {
		t.Error("expected error for directory")
	}
}

func TestWatcherCloseUnread(t *testing.T) {
	dir := t.TempDir()
	err := create(dir, watched, 0o644, "frames")
	if err != nil {
		t.Fatalf("failed to create watched file: %v", err)
	}
	stream := make(chan Change)
	w, err := NewWatcher(context.Background(), filepath.Join(dir, watched), stream, -1, nil)
	if err != nil {
		t.Fatalf("unexpected error returned by NewWatcher: %v", err)
	}
	// The initial change is never received, so
	// Close must not wait for it to be sent.
	done := make(chan error)
	go func() { done <- w.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error closing watcher: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("close did not return")
	}
}

var sumTests = []struct {
	a, b *Sum
	want bool
}{
	{a: nil, b: nil, want: true},
	{a: nil, b: &Sum{}, want: false},
	{a: &Sum{}, b: nil, want: false},
	{a: &Sum{}, b: &Sum{}, want: true},
	{a: &Sum{0: 1}, b: &Sum{}, want: false},
	{a: &Sum{}, b: &Sum{0: 1}, want: false},
}

func TestSum(t *testing.T) {
	for _, test := range sumTests {
		got := test.a.Equal(test.b)
		if got != test.want {
			t.Errorf("unexpected result for %q.equal(%q): got:%t want:%t", test.a, test.b, got, test.want)
		}
	}
}
