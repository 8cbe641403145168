// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"
)

// Frame is an APNG frame to be encoded.
type Frame struct {
	// Image is the frame's image. Its bounds give
	// the frame's size but not its placement.
	Image image.Image

	// Offset is the placement of the frame on the canvas.
	Offset image.Point

	// DelayNum and DelayDen give the frame's display
	// time in seconds. A zero DelayDen is 1/100 s.
	DelayNum, DelayDen uint16

	// Dispose and Blend are the frame's disposal and
	// blend operations.
	Dispose, Blend uint8
}

// Encode writes frames to w as an APNG with the given loop count, where
// zero loops forever. The canvas is the size of the first frame, which
// is also written as the default image. All frames are written as 8-bit
// RGBA.
func Encode(w io.Writer, frames []Frame, loops int) error {
	if len(frames) == 0 {
		return errors.New("apng: need at least one frame")
	}
	if loops < 0 || uint64(loops) > 1<<32-1 {
		return fmt.Errorf("apng: invalid loop count: %d", loops)
	}
	canvas := frames[0].Image.Bounds().Size()
	if frames[0].Offset != (image.Point{}) {
		return errors.New("apng: first frame must be at the canvas origin")
	}
	for i, f := range frames {
		r := image.Rectangle{Max: f.Image.Bounds().Size()}.Add(f.Offset)
		if r.Empty() || f.Offset.X < 0 || f.Offset.Y < 0 || r.Max.X > canvas.X || r.Max.Y > canvas.Y {
			return fmt.Errorf("apng: frame %d region %v outside canvas %v", i, r, canvas)
		}
		if f.Dispose > DisposePrevious || f.Blend > BlendOver {
			return fmt.Errorf("apng: frame %d has invalid dispose or blend operation", i)
		}
	}

	_, err := io.WriteString(w, pngHeader)
	if err != nil {
		return err
	}
	cw := chunkWriter{w: w}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(canvas.X))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(canvas.Y))
	ihdr[8] = 8  // Bit depth.
	ihdr[9] = 6  // Truecolor with alpha.
	ihdr[10] = 0 // Deflate compression.
	ihdr[11] = 0 // Adaptive filtering.
	ihdr[12] = 0 // No interlacing.
	cw.writeChunk(ihdr, typeIHDR)

	actl := make([]byte, 8)
	binary.BigEndian.PutUint32(actl[0:4], uint32(len(frames)))
	binary.BigEndian.PutUint32(actl[4:8], uint32(loops))
	cw.writeChunk(actl, typeACTL)

	var seq uint32
	for i, f := range frames {
		size := f.Image.Bounds().Size()
		fc := frameControl{
			seq:       seq,
			width:     uint32(size.X),
			height:    uint32(size.Y),
			xOffset:   uint32(f.Offset.X),
			yOffset:   uint32(f.Offset.Y),
			delayNum:  f.DelayNum,
			delayDen:  f.DelayDen,
			disposeOp: f.Dispose,
			blendOp:   f.Blend,
		}
		cw.writeChunk(fc.marshal(), typeFCTL)
		seq++

		data, err := compress(f.Image)
		if err != nil {
			return err
		}
		if i == 0 {
			cw.writeChunk(data, typeIDAT)
			continue
		}
		fdat := make([]byte, 4, len(data)+4)
		binary.BigEndian.PutUint32(fdat, seq)
		cw.writeChunk(append(fdat, data...), typeFDAT)
		seq++
	}
	cw.writeChunk(nil, typeIEND)
	return cw.err
}

// compress returns the zlib compressed, unfiltered RGBA scanlines of img.
func compress(img image.Image) ([]byte, error) {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(b)
		draw.Draw(nrgba, b, img, b.Min, draw.Src)
	}
	var buf bytes.Buffer
	z := zlib.NewWriter(&buf)
	row := make([]byte, 1+4*b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := nrgba.PixOffset(b.Min.X, y)
		// Filter type none.
		row[0] = 0
		copy(row[1:], nrgba.Pix[i:i+4*b.Dx()])
		_, err := z.Write(row)
		if err != nil {
			return nil, err
		}
	}
	err := z.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
