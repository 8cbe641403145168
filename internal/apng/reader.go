// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package apng implements a lazy animated PNG frame source.
//
// Importing the package registers the "apng" format with the animation
// package.
package apng

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/kortschak/animplay/internal/animation"
)

func init() {
	animation.RegisterFormat("apng", pngHeader, func(data []byte) (animation.FrameSource, animation.Size, error) {
		// Still PNGs share the signature, so only claim streams
		// with animation control ahead of the image data.
		if !IsAPNG(bufio.NewReaderSize(bytes.NewReader(data), len(data))) {
			_, err := png.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return nil, animation.Size{}, err
			}
			return nil, animation.Size{}, animation.ErrNotAnimated
		}
		src, err := Open(data)
		if err != nil {
			return nil, animation.Size{}, err
		}
		return src, src.Size(), nil
	})
}

// Source is an animation.FrameSource for an APNG image. Frames are
// located, decompressed and composited only when requested.
type Source struct {
	data []byte

	ihdr       []byte
	plte, trns []byte
	width      uint32
	height     uint32

	numFrames uint32
	numPlays  uint32

	// pos is the offset of the next chunk to examine.
	pos int
	// seq is the next expected sequence number.
	seq     uint32
	emitted int
	done    bool
	err     error

	canvas  *image.NRGBA
	dispose uint8
	region  image.Rectangle
	saved   *image.NRGBA
}

// Open returns a Source for the APNG held in data. The PNG signature,
// header and animation control chunk are validated, but no frame data
// is decompressed. If data is a valid PNG without an animation control
// chunk before its image data, the error wraps animation.ErrNotAnimated.
func Open(data []byte) (*Source, error) {
	if len(data) < len(pngHeader) || string(data[:len(pngHeader)]) != pngHeader {
		return nil, errors.New("not a PNG file")
	}
	s := &Source{data: data}

	pos := len(pngHeader)
	c, err := readChunk(data, pos)
	if err != nil {
		return nil, err
	}
	if c.typ != typeIHDR || len(c.data) != 13 {
		return nil, fmt.Errorf("invalid IHDR chunk: %q with length %d", c.typ, len(c.data))
	}
	s.ihdr = c.data
	s.width = binary.BigEndian.Uint32(c.data[0:4])
	s.height = binary.BigEndian.Uint32(c.data[4:8])
	if s.width == 0 || s.height == 0 || s.width > 1<<31-1 || s.height > 1<<31-1 {
		return nil, fmt.Errorf("invalid image size: %dx%d", s.width, s.height)
	}
	pos = c.end

	var sawACTL bool
	start := -1
	for {
		c, err := readChunk(data, pos)
		if err != nil {
			return nil, err
		}
		switch c.typ {
		case typePLTE:
			s.plte = c.data
		case typeTRNS:
			s.trns = c.data
		case typeACTL:
			if len(c.data) != 8 {
				return nil, fmt.Errorf("invalid acTL length: %d", len(c.data))
			}
			s.numFrames = binary.BigEndian.Uint32(c.data[0:4])
			s.numPlays = binary.BigEndian.Uint32(c.data[4:8])
			sawACTL = true
		case typeFCTL:
			if start < 0 {
				start = c.start
			}
		case typeIDAT, typeIEND:
			if !sawACTL {
				return nil, animation.ErrNotAnimated
			}
			if c.typ == typeIEND {
				return nil, errors.New("missing image data")
			}
			if s.numFrames == 0 {
				return nil, errors.New("animation declares no frames")
			}
			if start < 0 {
				start = c.start
			}
			s.pos = start
			return s, nil
		}
		pos = c.end
	}
}

// IsAPNG returns whether the data held by r is an animated PNG. The
// animation control chunk must be found within the data r can peek.
func IsAPNG(r animation.ReadPeeker) bool {
	b, err := r.Peek(len(pngHeader))
	if err != nil || string(b) != pngHeader {
		return false
	}
	pos := len(pngHeader)
	for {
		b, err := r.Peek(pos + 8)
		if err != nil {
			return false
		}
		switch string(b[pos+4 : pos+8]) {
		case typeACTL:
			return true
		case typeIDAT:
			return false
		}
		n := binary.BigEndian.Uint32(b[pos : pos+4])
		if uint64(n) > 1<<31 {
			return false
		}
		pos += int(n) + 12
	}
}

// Size returns the canvas size of the animation.
func (s *Source) Size() animation.Size {
	return animation.Size{Width: int(s.width), Height: int(s.height)}
}

// Len returns the number of frames declared by the animation.
func (s *Source) Len() int { return int(s.numFrames) }

// LoopCount returns the number of times the animation should be played.
// Zero means forever.
func (s *Source) LoopCount() int { return int(s.numPlays) }

// Next returns the next composited frame of the animation. Frames cover
// the whole canvas. Next returns io.EOF after the last declared frame or
// at the end of the image data. After any other error the Source returns
// that error for all subsequent calls.
func (s *Source) Next() (animation.RawFrame, error) {
	if s.err != nil {
		return animation.RawFrame{}, s.err
	}
	if s.done || s.emitted >= int(s.numFrames) {
		s.done = true
		return animation.RawFrame{}, io.EOF
	}
	fc, parts, err := s.nextFrame()
	if err != nil {
		if err == io.EOF {
			s.done = true
			return animation.RawFrame{}, io.EOF
		}
		s.err = fmt.Errorf("frame %d: %w", s.emitted, err)
		return animation.RawFrame{}, s.err
	}
	img, err := s.decodeFrame(fc, parts)
	if err != nil {
		s.err = fmt.Errorf("frame %d: %w", s.emitted, err)
		return animation.RawFrame{}, s.err
	}
	num, den := fc.delay()
	f := animation.RawFrame{
		Image: s.composite(fc, img),
		Delay: animation.Delay{Num: num, Den: den},
	}
	s.emitted++
	return f, nil
}

// nextFrame walks the chunk stream to the next frame control chunk and
// returns it with the frame's compressed image data.
func (s *Source) nextFrame() (frameControl, [][]byte, error) {
	var fc frameControl
	for {
		c, err := s.chunk()
		if err != nil {
			return fc, nil, err
		}
		s.pos = c.end
		switch c.typ {
		case typeIEND:
			s.pos = c.start
			return fc, nil, io.EOF
		case typeFCTL:
			fc, err = parseFrameControl(c.data)
			if err != nil {
				return fc, nil, err
			}
			err = s.checkSeq(fc.seq)
			if err != nil {
				return fc, nil, err
			}
			err = s.checkBounds(fc)
			if err != nil {
				return fc, nil, err
			}
			parts, err := s.frameData()
			return fc, parts, err
		}
		// IDAT here is a default image that is
		// not part of the animation.
	}
}

// frameData collects the image data following a frame control chunk.
func (s *Source) frameData() ([][]byte, error) {
	var (
		parts   [][]byte
		sawIDAT bool
		sawFDAT bool
	)
	for {
		c, err := s.chunk()
		if err != nil {
			return nil, err
		}
		switch c.typ {
		case typeFCTL, typeIEND:
			if len(parts) == 0 {
				return nil, errors.New("missing frame data")
			}
			return parts, nil
		case typeIDAT:
			if s.emitted != 0 || sawFDAT {
				return nil, errors.New("unexpected IDAT chunk")
			}
			sawIDAT = true
			parts = append(parts, c.data)
		case typeFDAT:
			if sawIDAT {
				return nil, errors.New("unexpected fdAT chunk")
			}
			if len(c.data) < 4 {
				return nil, fmt.Errorf("invalid fdAT length: %d", len(c.data))
			}
			err = s.checkSeq(binary.BigEndian.Uint32(c.data[:4]))
			if err != nil {
				return nil, err
			}
			sawFDAT = true
			parts = append(parts, c.data[4:])
		}
		s.pos = c.end
	}
}

func (s *Source) chunk() (chunk, error) {
	c, err := readChunk(s.data, s.pos)
	if err == io.ErrUnexpectedEOF {
		return c, errors.New("missing IEND chunk")
	}
	return c, err
}

func (s *Source) checkSeq(seq uint32) error {
	if seq != s.seq {
		return fmt.Errorf("out of order sequence number: got:%d want:%d", seq, s.seq)
	}
	s.seq++
	return nil
}

func (s *Source) checkBounds(fc frameControl) error {
	if fc.width == 0 || fc.height == 0 {
		return fmt.Errorf("invalid frame size: %dx%d", fc.width, fc.height)
	}
	if uint64(fc.xOffset)+uint64(fc.width) > uint64(s.width) || uint64(fc.yOffset)+uint64(fc.height) > uint64(s.height) {
		return fmt.Errorf("frame region %dx%d+%d+%d outside canvas %dx%d",
			fc.width, fc.height, fc.xOffset, fc.yOffset, s.width, s.height)
	}
	return nil
}

// decodeFrame decodes the frame's image data by wrapping it in a
// standalone PNG stream with the frame's dimensions.
func (s *Source) decodeFrame(fc frameControl, parts [][]byte) (image.Image, error) {
	var buf bytes.Buffer
	buf.WriteString(pngHeader)
	w := chunkWriter{w: &buf}
	ihdr := append([]byte(nil), s.ihdr...)
	binary.BigEndian.PutUint32(ihdr[0:4], fc.width)
	binary.BigEndian.PutUint32(ihdr[4:8], fc.height)
	w.writeChunk(ihdr, typeIHDR)
	if s.plte != nil {
		w.writeChunk(s.plte, typePLTE)
	}
	if s.trns != nil {
		w.writeChunk(s.trns, typeTRNS)
	}
	w.writeChunk(bytes.Join(parts, nil), typeIDAT)
	w.writeChunk(nil, typeIEND)
	if w.err != nil {
		return nil, w.err
	}
	return png.Decode(&buf)
}

// composite renders img onto the canvas according to fc and returns a
// copy of the result. The disposal of the previous frame is applied
// first.
func (s *Source) composite(fc frameControl, img image.Image) *image.NRGBA {
	if s.canvas == nil {
		s.canvas = image.NewNRGBA(image.Rect(0, 0, int(s.width), int(s.height)))
	}
	switch s.dispose {
	case DisposeBackground:
		draw.Draw(s.canvas, s.region, image.Transparent, image.Point{}, draw.Src)
	case DisposePrevious:
		draw.Draw(s.canvas, s.region, s.saved, s.region.Min, draw.Src)
	}

	r := image.Rect(0, 0, int(fc.width), int(fc.height)).Add(image.Pt(int(fc.xOffset), int(fc.yOffset)))
	dispose := fc.disposeOp
	if dispose == DisposePrevious && s.emitted == 0 {
		// There is no previous frame to restore.
		dispose = DisposeBackground
	}
	if dispose == DisposePrevious {
		s.saved = image.NewNRGBA(r)
		draw.Draw(s.saved, r, s.canvas, r.Min, draw.Src)
	}
	op := draw.Over
	if fc.blendOp == BlendSource {
		op = draw.Src
	}
	draw.Draw(s.canvas, r, img, img.Bounds().Min, op)
	s.dispose, s.region = dispose, r

	dst := image.NewNRGBA(s.canvas.Bounds())
	copy(dst.Pix, s.canvas.Pix)
	return dst
}
