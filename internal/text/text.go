// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package text provides functions for laying out and rendering
// [basicfont.Face] fonts to an image.
package text

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Size returns the size, in font rows and columns, of the bounding rectangle.
func Size(bound image.Rectangle, fnt *basicfont.Face) (rows, cols int) {
	rows = bound.Dy() / fnt.Height
	cols = bound.Dx() / (fnt.Width + 1)
	return rows, cols
}

// Lines splits text into lines of at most cols runes. If words is true,
// text spanning lines will be broken at word boundaries where possible.
// Lines are not truncated to a row count.
func Lines(text string, cols int, words bool) []string {
	if cols < 1 {
		return nil
	}
	if words {
		wrapper := wrap.NewWrapper()
		wrapper.StripTrailingNewline = true
		wrapper.CutLongWords = true
		lines := strings.Split(wrapper.Wrap(text, cols), "\n")
		if len(lines) < 2 || lines[0] != "" {
			for i, l := range lines {
				lines[i] = strings.TrimSpace(l)
			}
		}
		return lines
	}
	var lines []string
	t := []rune(text)
	for len(t) != 0 {
		n := min(cols, len(t))
		lines = append(lines, string(t[:n]))
		t = t[n:]
	}
	return lines
}

// Fits returns whether text can be drawn within bound without truncation.
func Fits(bound image.Rectangle, text string, fnt *basicfont.Face, words bool) bool {
	rows, cols := Size(bound, fnt)
	lines := Lines(text, cols, words)
	if len(lines) > rows {
		return false
	}
	for _, l := range lines {
		if len([]rune(l)) > cols {
			return false
		}
	}
	return true
}

// Draw draws the provided text to the destination in the provided color.
// Relative position of the text is specified by dx and dy which must be
// in the range [0, 1]. If words is true, text spanning lines will be broken
// at word boundaries where possible. Text that does not fit is truncated
// with an ellipsis.
func Draw(dst draw.Image, text string, col color.Color, fnt *basicfont.Face, dx, dy float64, words bool) {
	rows, cols := Size(dst.Bounds(), fnt)
	if rows < 1 || cols < 1 {
		return
	}
	lines := Lines(text, cols, words)
	if len(lines) > rows {
		lines = lines[:rows]
		last := []rune(lines[rows-1])
		if len(last) > cols-len("...") {
			last = last[:max(0, cols-len("..."))]
		}
		lines[rows-1] = string(last) + "..."
	}

	if dx != 0 || dy != 0 {
		mp := newBounds(dst)
		min := dst.Bounds().Min
		for i, l := range lines {
			mp.drawString(l, fnt, fixed.P(min.X, min.Y+fnt.Ascent+(fnt.Height)*i))
		}
		dst = mp.offset(dst, dx, dy)
	}
	fg := &image.Uniform{col}
	min := dst.Bounds().Min
	for i, l := range lines {
		drawer := font.Drawer{
			Dst:  dst,
			Src:  fg,
			Face: fnt,
			Dot:  fixed.P(min.X, min.Y+fnt.Ascent+(fnt.Height)*i),
		}
		drawer.DrawString(l)
	}
}

// bounds is the extent of rendered glyphs.
type bounds image.Rectangle

func newBounds(dst draw.Image) *bounds {
	b := bounds(image.Rectangle{Min: dst.Bounds().Max, Max: dst.Bounds().Min})
	return &b
}

func (b *bounds) drawString(s string, fnt font.Face, dot fixed.Point26_6) {
	prevC := rune(-1)
	for _, c := range s {
		if prevC >= 0 {
			dot.X += fnt.Kern(prevC, c)
		}
		dr, _, _, advance, ok := fnt.Glyph(dot, c)
		if !ok {
			continue
		}
		b.set(dr.Min.X, dr.Min.Y)
		b.set(dr.Max.X, dr.Max.Y)
		dot.X += advance
		prevC = c
	}
}

func (b *bounds) set(x, y int) {
	b.Min.X = min(b.Min.X, x)
	b.Min.Y = min(b.Min.Y, y)
	b.Max.X = max(b.Max.X, x)
	b.Max.Y = max(b.Max.Y, y)
}

// offset returns img shifted so that the glyph extent is placed at the
// relative position dx, dy within the space left over in img.
func (b *bounds) offset(img draw.Image, dx, dy float64) draw.Image {
	d := img.Bounds().Max.Sub(b.Max)
	return offset{Image: img, offset: image.Point{X: int(float64(d.X) * dx), Y: int(float64(d.Y) * dy)}}
}

type offset struct {
	draw.Image
	offset image.Point
}

func (o offset) Set(x, y int, c color.Color) {
	o.Image.Set(x+o.offset.X, y+o.offset.Y, c)
}

func (o offset) At(x, y int) color.Color {
	return o.Image.At(x+o.offset.X, y+o.offset.Y)
}
