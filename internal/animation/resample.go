// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"golang.org/x/image/draw"
)

// Resampler resizes straight alpha frame images. Implementations must
// not modify src.
type Resampler interface {
	Resize(src *image.NRGBA, to Size) (*image.NRGBA, error)
}

// Scaler is a Resampler backed by a [draw.Interpolator].
type Scaler struct {
	draw.Interpolator
}

// Resize returns a copy of src scaled to the provided size.
func (s Scaler) Resize(src *image.NRGBA, to Size) (*image.NRGBA, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("invalid target size: %v", to)
	}
	if src.Bounds().Empty() {
		return nil, errors.New("empty source image")
	}
	interp := s.Interpolator
	if interp == nil {
		interp = draw.BiLinear
	}
	dst := image.NewNRGBA(to.Rect())
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

var resamplers = map[string]Scaler{
	"nearest":         {draw.NearestNeighbor},
	"approx_bilinear": {draw.ApproxBiLinear},
	"bilinear":        {draw.BiLinear},
	"catmull_rom":     {draw.CatmullRom},
}

// ResamplerFor returns the named Resampler. Valid names are "nearest",
// "approx_bilinear", "bilinear" and "catmull_rom". The empty name is
// "bilinear".
func ResamplerFor(name string) (Resampler, error) {
	if name == "" {
		name = "bilinear"
	}
	r, ok := resamplers[name]
	if !ok {
		return nil, fmt.Errorf("unknown resampler %q: valid resamplers are %q", name, Resamplers())
	}
	return r, nil
}

// Resamplers returns the sorted names of the available resamplers.
func Resamplers() []string {
	names := make([]string, 0, len(resamplers))
	for n := range resamplers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// frameTarget returns the size a frame of size f on a canvas of size
// canvas should have when the canvas is resized to target. Frames that
// cover the whole canvas are scaled to exactly the target size.
func frameTarget(f, canvas, target Size) Size {
	if f == canvas {
		return target
	}
	scale := func(v, from, to int) int {
		if from == 0 {
			return 0
		}
		n := (v*to + from/2) / from
		if n == 0 && v != 0 && to != 0 {
			n = 1
		}
		return n
	}
	return Size{
		Width:  scale(f.Width, canvas.Width, target.Width),
		Height: scale(f.Height, canvas.Height, target.Height),
	}
}

// frameOffset returns the placement of a resized frame of size f that was
// at off on a canvas of size canvas, when the canvas is resized to target.
// The offset is scaled by the same ratio as the canvas and then pulled
// back so that a frame that fitted the source canvas fits the target.
func frameOffset(off image.Point, f, canvas, target Size) image.Point {
	scale := func(v, size, from, to int) int {
		if from == 0 {
			return 0
		}
		n := v * to / from
		if n+size > to {
			n = to - size
		}
		return max(n, 0)
	}
	return image.Point{
		X: scale(off.X, f.Width, canvas.Width, target.Width),
		Y: scale(off.Y, f.Height, canvas.Height, target.Height),
	}
}
