// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package export

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/kortschak/animplay/internal/animation"
)

func frame(offset image.Point, size animation.Size, c color.NRGBA) *animation.Frame {
	img := image.NewNRGBA(size.Rect())
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return &animation.Frame{
		Offset: offset,
		Image:  animation.Premultiply(img),
		Delay:  animation.Delay{Num: 100, Den: 1},
	}
}

func TestWriteFrame(t *testing.T) {
	canvas := animation.Size{Width: 6, Height: 4}
	red := color.NRGBA{R: 0xff, A: 0xff}
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "frames")
			w, err := NewWriter(dir, format, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer w.Close()

			f := frame(image.Pt(2, 1), animation.Size{Width: 3, Height: 2}, red)
			for n := 0; n < 2; n++ {
				_, err = w.WriteFrame(n, f, canvas)
				if err != nil {
					t.Fatalf("unexpected error writing frame %d: %v", n, err)
				}
			}
			want := []string{
				filepath.Join(dir, "frame_000."+format),
				filepath.Join(dir, "frame_001."+format),
			}
			if !cmp.Equal(w.Written(), want) {
				t.Errorf("unexpected written files:\n--- want:\n+++ got:\n%s", cmp.Diff(want, w.Written()))
			}

			file, err := os.Open(want[1])
			if err != nil {
				t.Fatalf("failed to open frame: %v", err)
			}
			defer file.Close()
			var img image.Image
			switch format {
			case "png":
				img, err = png.Decode(file)
			case "bmp":
				img, err = bmp.Decode(file)
			case "tiff":
				img, err = tiff.Decode(file)
			}
			if err != nil {
				t.Fatalf("failed to decode frame: %v", err)
			}
			if img.Bounds() != canvas.Rect() {
				t.Errorf("unexpected bounds: got:%v want:%v", img.Bounds(), canvas.Rect())
			}
			check := func(x, y int, want color.NRGBA) {
				t.Helper()
				got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				if got != want {
					t.Errorf("unexpected pixel at (%d,%d): got:%v want:%v", x, y, got, want)
				}
			}
			check(2, 1, red)
			check(4, 2, red)
			if format != "bmp" {
				// BMP alpha support depends on the header version.
				check(5, 3, color.NRGBA{})
				check(0, 0, color.NRGBA{})
			}
		})
	}
}

func TestStraightAlpha(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "png", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	want := color.NRGBA{R: 0xff, G: 0x80, A: 0xc0}
	canvas := animation.Size{Width: 2, Height: 2}
	path, err := w.WriteFrame(0, frame(image.Point{}, canvas, want), canvas)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open frame: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	got := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	d := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if got.A != want.A || d(got.R, want.R) > 1 || d(got.G, want.G) > 1 || got.B != 0 {
		t.Errorf("unexpected straight alpha pixel: got:%v want:%v", got, want)
	}
}

func TestLocked(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "png", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = NewWriter(dir, "png", nil)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("unexpected error for locked directory: %v", err)
	}
	err = w.Close()
	if err != nil {
		t.Errorf("unexpected error closing writer: %v", err)
	}
	_, err = os.Stat(filepath.Join(dir, LockFile))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file not removed: %v", err)
	}
	_, err = w.WriteFrame(0, frame(image.Point{}, animation.Size{Width: 1, Height: 1}, color.NRGBA{A: 0xff}), animation.Size{Width: 1, Height: 1})
	if err == nil {
		t.Error("expected error writing to closed writer")
	}

	w, err = NewWriter(dir, "png", nil)
	if err != nil {
		t.Fatalf("unexpected error reopening directory: %v", err)
	}
	w.Close()
}

func TestUnknownFormat(t *testing.T) {
	_, err := NewWriter(t.TempDir(), "gif", nil)
	if err == nil {
		t.Error("expected error for unknown format")
	}
}
