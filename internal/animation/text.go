// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"image/color"
	"io"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/kortschak/animplay/internal/text"
)

// Text is a scrolling text animation.
type Text string

// TextFrameDelay is the display time of each frame of a text animation.
const TextFrameDelay = 150 // ms

// Source returns a FrameSource that renders the frames required to present
// the full length of the receiver within the given bounds using
// [basicfont.Face7x13] with the fg and bg colors. Text that fits within
// the bounds is centered and word wrapped as a single frame that is
// shown once; longer text scrolls and loops forever.
func (t Text) Source(bound image.Rectangle, fg, bg color.Color) (*TextSource, error) {
	if bound.Empty() {
		return nil, errors.New("empty bound")
	}
	rows, cols := text.Size(bound, basicfont.Face7x13)
	s := string(t)
	frames := 1
	if !text.Fits(bound, s, basicfont.Face7x13, true) {
		if rows*cols < 4 {
			return nil, errors.New("bound too small")
		}
		s = strings.Repeat(" ", rows*cols-4) + s
		frames = len(s)
	}
	return &TextSource{
		text:       s,
		frames:     frames,
		bound:      image.Rectangle{Max: bound.Size()},
		fg:         fg,
		background: &image.Uniform{bg},
	}, nil
}

// TextSource is a FrameSource of rendered text frames.
type TextSource struct {
	text       string
	frames     int
	next       int
	bound      image.Rectangle
	fg         color.Color
	background image.Image
}

// Len returns the number of frames in the text animation.
func (s *TextSource) Len() int { return s.frames }

// Size returns the canvas size of the text animation.
func (s *TextSource) Size() Size { return SizeOf(s.bound) }

// LoopCount returns one for text that fits in a single frame and zero,
// loop forever, for scrolling text.
func (s *TextSource) LoopCount() int {
	if s.frames == 1 {
		return 1
	}
	return 0
}

// Next renders the next text frame.
func (s *TextSource) Next() (RawFrame, error) {
	if s.next >= s.frames {
		return RawFrame{}, io.EOF
	}
	singleFrame := s.frames == 1 // We center and word break the text in this case.
	var delta float64
	if singleFrame {
		delta = 0.5
	}
	dst := image.NewNRGBA(s.bound)
	draw.Draw(dst, dst.Bounds(), s.background, image.Point{}, draw.Src)
	text.Draw(dst, s.text[s.next:], s.fg, basicfont.Face7x13, delta, delta, singleFrame)
	s.next++
	return RawFrame{Image: dst, Delay: Delay{Num: TextFrameDelay, Den: 1}}, nil
}
