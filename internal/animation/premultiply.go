// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"math"
	"sync"
)

const gamma = 2.2

var (
	premulOnce sync.Once

	// premulTable[a][c] is the gamma corrected
	// premultiplied value of channel c at alpha a.
	premulTable *[256][256]uint8
)

func initPremul() {
	var t [256][256]uint8
	for a := range t {
		fa := float64(a) / 255
		for c := range t[a] {
			fc := float64(c) / 255
			v := math.Pow(math.Pow(fc, gamma)*fa, 1/gamma) * 255
			t[a][c] = uint8(math.Round(v))
		}
	}
	premulTable = &t
}

// Premultiply converts the straight alpha pixels of img to gamma corrected
// premultiplied alpha in place and returns an RGBA image sharing img's
// pixel data. Each color channel c at alpha a becomes
//
//	round(((c/255)^2.2 * (a/255))^(1/2.2) * 255)
//
// and alpha is unchanged. After the call img must no longer be used as
// a straight alpha image.
func Premultiply(img *image.NRGBA) *image.RGBA {
	premulOnce.Do(initPremul)
	b := img.Bounds()
	w := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for i := 0; i < len(row); i += 4 {
			a := row[i+3]
			if a == 0xff {
				continue
			}
			t := &premulTable[a]
			row[i+0] = t[row[i+0]]
			row[i+1] = t[row[i+1]]
			row[i+2] = t[row[i+2]]
		}
	}
	return &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
}

var (
	unpremulOnce  sync.Once
	unpremulTable *[256][256]uint8
)

func initUnpremul() {
	var t [256][256]uint8
	for a := 1; a < len(t); a++ {
		fa := float64(a) / 255
		for c := range t[a] {
			fc := float64(c) / 255
			v := math.Pow(math.Pow(fc, gamma)/fa, 1/gamma) * 255
			t[a][c] = uint8(math.Round(min(v, 255)))
		}
	}
	unpremulTable = &t
}

// Unpremultiply returns a straight alpha copy of img, which holds gamma
// corrected premultiplied pixels as produced by Premultiply. Channel
// values that premultiplication merged are not recovered exactly.
func Unpremultiply(img *image.RGBA) *image.NRGBA {
	unpremulOnce.Do(initUnpremul)
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	w := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		copy(row, img.Pix[y*img.Stride:y*img.Stride+w])
		for i := 0; i < len(row); i += 4 {
			a := row[i+3]
			if a == 0xff {
				continue
			}
			t := &unpremulTable[a]
			row[i+0] = t[row[i+0]]
			row[i+1] = t[row[i+1]]
			row[i+2] = t[row[i+2]]
		}
	}
	return dst
}
