// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package export writes served animation frames to image files.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/gofrs/flock"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/kortschak/animplay/internal/animation"
)

// LockFile is the name of the lock file held in an export directory
// while a Writer is open.
const LockFile = ".animplay.lock"

// ErrLocked is returned by NewWriter when another Writer holds the
// export directory.
var ErrLocked = errors.New("export directory is in use")

type encoder func(io.Writer, image.Image) error

var encoders = map[string]encoder{
	"png": png.Encode,
	"bmp": bmp.Encode,
	"tiff": func(w io.Writer, m image.Image) error {
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
	},
}

// Formats returns the names of the supported export formats.
func Formats() []string {
	names := make([]string, 0, len(encoders))
	for n := range encoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Writer writes frames to a directory as numbered image files.
type Writer struct {
	dir    string
	ext    string
	encode encoder
	lock   *flock.Flock
	log    *slog.Logger

	written []string
}

// NewWriter returns a Writer that writes frames to dir in the named
// format, "png", "bmp" or "tiff". The directory is created if it does
// not exist and is locked until Close is called.
func NewWriter(dir, format string, log *slog.Logger) (*Writer, error) {
	enc, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("unknown export format: %q", format)
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err = lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		dir:    dir,
		ext:    format,
		encode: enc,
		lock:   lock,
		log:    log.With(slog.String("component", "export")),
	}, nil
}

// Name returns the file name used for the nth written frame.
func (w *Writer) Name(n int) string {
	return fmt.Sprintf("frame_%03d.%s", n, w.ext)
}

// WriteFrame writes f placed at its offset on a transparent canvas of the
// given size as the nth frame and returns the path of the written file.
// Pixels are written with straight alpha.
func (w *Writer) WriteFrame(n int, f *animation.Frame, canvas animation.Size) (string, error) {
	if w.lock == nil {
		return "", errors.New("writer is closed")
	}
	if !canvas.Valid() {
		return "", fmt.Errorf("invalid canvas size: %v", canvas)
	}
	dst := image.NewRGBA(canvas.Rect())
	r := f.Image.Bounds().Sub(f.Image.Bounds().Min).Add(f.Offset)
	draw.Draw(dst, r, f.Image, f.Image.Bounds().Min, draw.Src)
	img := animation.Unpremultiply(dst)

	path := filepath.Join(w.dir, w.Name(n))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	err = w.encode(file, img)
	if err != nil {
		file.Close()
		return "", err
	}
	err = file.Close()
	if err != nil {
		return "", err
	}
	w.log.LogAttrs(context.Background(), slog.LevelDebug, "write frame", slog.Int("n", n), slog.String("path", path))
	w.written = append(w.written, path)
	return path, nil
}

// Written returns the paths of the files written so far.
func (w *Writer) Written() []string {
	return slices.Clone(w.written)
}

// Close releases the export directory lock.
func (w *Writer) Close() error {
	if w.lock == nil {
		return nil
	}
	err := w.lock.Unlock()
	os.Remove(w.lock.Path())
	w.lock = nil
	return err
}
