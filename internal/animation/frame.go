// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"time"
)

// Size is a canvas size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeOf returns the size of the rectangle r.
func SizeOf(r image.Rectangle) Size {
	return Size{Width: r.Dx(), Height: r.Dy()}
}

// IsZero returns whether s is the zero Size.
func (s Size) IsZero() bool {
	return s == Size{}
}

// Valid returns whether both dimensions of s are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Bytes returns the number of bytes needed to hold an RGBA8 image of
// size s.
func (s Size) Bytes() int {
	return s.Width * s.Height * 4
}

// Rect returns the rectangle with origin at zero and size s.
func (s Size) Rect() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Delay is a frame display duration expressed as the rational number
// of milliseconds Num/Den.
type Delay struct {
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

// Milliseconds returns the delay truncated to an integer number of
// milliseconds. A zero denominator is a malformed delay.
func (d Delay) Milliseconds() (int, error) {
	if d.Den == 0 {
		return 0, fmt.Errorf("zero delay denominator: %d/%d", d.Num, d.Den)
	}
	return int(uint64(d.Num) / uint64(d.Den)), nil
}

// Duration returns the delay as a time.Duration. Duration returns zero
// for a malformed delay.
func (d Delay) Duration() time.Duration {
	ms, err := d.Milliseconds()
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func (d Delay) String() string {
	return fmt.Sprintf("%d/%dms", d.Num, d.Den)
}

// RawFrame is a frame as produced by a FrameSource, before resizing and
// premultiplication.
type RawFrame struct {
	// Offset is the placement of the frame on the canvas.
	Offset image.Point

	// Image holds the straight alpha pixels of the frame.
	Image *image.NRGBA

	// Delay is the nominal display duration of the frame.
	Delay Delay
}

// Frame is a fully processed, cached frame. A Frame must not be mutated.
type Frame struct {
	// Offset is the placement of the frame on the canvas.
	Offset image.Point

	// Image holds the premultiplied pixels of the frame.
	Image *image.RGBA

	// Delay is the display duration of the frame.
	Delay Delay
}

// Size returns the pixel dimensions of the frame.
func (f *Frame) Size() Size {
	return SizeOf(f.Image.Bounds())
}

// FrameSource is a lazy, finite sequence of raw frames. Next returns
// io.EOF when the sequence is exhausted. A FrameSource is never rewound.
//
// If a FrameSource also implements io.Closer, it is closed when the
// Decoder that owns it is closed.
type FrameSource interface {
	Next() (RawFrame, error)
}

// LoopCounter is implemented by frame sources that declare how many times
// their animation should be played. A loop count of zero means forever.
type LoopCounter interface {
	LoopCount() int
}
