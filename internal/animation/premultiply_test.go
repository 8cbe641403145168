// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestPremultiplyFixedPoints(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 2))
	for x := 0; x < 256; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{R: uint8(x), G: uint8(255 - x), B: uint8(x / 2), A: 0xff})
		img.SetNRGBA(x, 1, color.NRGBA{R: uint8(x), G: uint8(255 - x), B: uint8(x / 2), A: 0})
	}
	got := Premultiply(img)
	for x := 0; x < 256; x++ {
		want := color.RGBA{R: uint8(x), G: uint8(255 - x), B: uint8(x / 2), A: 0xff}
		if c := got.RGBAAt(x, 0); c != want {
			t.Errorf("opaque pixel altered at %d: got:%v want:%v", x, c, want)
		}
		if c := got.RGBAAt(x, 1); c != (color.RGBA{}) {
			t.Errorf("transparent pixel not cleared at %d: got:%v", x, c)
		}
	}
}

func TestPremultiplyFormula(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for a := 0; a < 256; a++ {
		for c := 0; c < 256; c++ {
			img.SetNRGBA(c, a, color.NRGBA{R: uint8(c), G: uint8(c), B: uint8(c), A: uint8(a)})
		}
	}
	got := Premultiply(img)
	for a := 0; a < 256; a++ {
		for c := 0; c < 256; c++ {
			v := math.Pow(math.Pow(float64(c)/255, 2.2)*(float64(a)/255), 1/2.2) * 255
			want := uint8(math.Round(v))
			p := got.RGBAAt(c, a)
			if p.R != want || p.G != want || p.B != want || p.A != uint8(a) {
				t.Fatalf("unexpected premultiplied value for c=%d a=%d: got:%v want:%d", c, a, p, want)
			}
		}
	}
}

func TestPremultiplyKnownValue(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0xff, A: 0x80})
	got := Premultiply(img).RGBAAt(0, 0)
	want := color.RGBA{R: 186, A: 0x80}
	if got != want {
		t.Errorf("unexpected value: got:%v want:%v", got, want)
	}
}

func TestPremultiplySubImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.NRGBA)
	Premultiply(sub)
	if img.NRGBAAt(0, 0) != (color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x80}) {
		t.Error("pixel outside sub-image altered")
	}
	if img.NRGBAAt(1, 1) == (color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x80}) {
		t.Error("pixel inside sub-image not altered")
	}
}

func TestUnpremultiply(t *testing.T) {
	for _, a := range []uint8{0, 1, 128, 200, 254, 255} {
		img := image.NewNRGBA(image.Rect(0, 0, 256, 1))
		for c := 0; c < 256; c++ {
			img.SetNRGBA(c, 0, color.NRGBA{R: uint8(c), G: uint8(255 - c), B: uint8(c / 2), A: a})
		}
		want := cloneNRGBA(img)
		got := Unpremultiply(Premultiply(img))
		for c := 0; c < 256; c++ {
			g, w := got.NRGBAAt(c, 0), want.NRGBAAt(c, 0)
			if g.A != w.A {
				t.Errorf("alpha altered at a=%d c=%d: got:%d want:%d", a, c, g.A, w.A)
			}
			switch {
			case a == 0:
				if g != (color.NRGBA{}) {
					t.Errorf("transparent pixel not cleared at c=%d: got:%v", c, g)
				}
			case a < 128:
				// Low alpha merges too many values to recover.
			default:
				if !near(g, w, 1) {
					t.Errorf("unexpected round trip at a=%d c=%d: got:%v want:%v", a, c, g, w)
				}
			}
		}
	}
}
