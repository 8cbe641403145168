// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"image"
	"io"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Still is a FrameSource holding a single image. The frame is shown
// for zero milliseconds.
type Still struct {
	img  image.Image
	done bool
}

// NewStill returns a Still for img.
func NewStill(img image.Image) *Still {
	return &Still{img: img}
}

// Next returns the still frame on the first call and io.EOF afterwards.
func (s *Still) Next() (RawFrame, error) {
	if s.done {
		return RawFrame{}, io.EOF
	}
	s.done = true
	return RawFrame{Image: toNRGBA(s.img), Delay: Delay{Num: 0, Den: 1}}, nil
}

// LoopCount returns one; a still is shown once.
func (s *Still) LoopCount() int { return 1 }

func openStill(data []byte) (FrameSource, Size, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Size{}, err
	}
	return NewStill(img), SizeOf(img.Bounds()), nil
}

// toNRGBA returns img as an NRGBA image with its origin at zero.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
