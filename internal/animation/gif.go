// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"

	"golang.org/x/image/draw"
)

func init() {
	RegisterFormat("gif", "GIF8?a", func(data []byte) (FrameSource, Size, error) {
		src, err := OpenGIF(data)
		if err != nil {
			return nil, Size{}, err
		}
		if src.Len() < 2 {
			return nil, Size{}, ErrNotAnimated
		}
		return src, src.Size(), nil
	})
}

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// GIF is a FrameSource for an animated GIF. Frames are composited onto
// the logical screen as they are requested, following each frame's
// disposal method.
//
// The image/gif package only decodes whole streams, so the image data
// of all frames is decompressed when the first frame is requested.
type GIF struct {
	data   []byte
	g      *gif.GIF
	frames int
	loops  int
	err    error

	canvas     *image.NRGBA
	background image.Image

	next    int
	restore *image.NRGBA
}

// OpenGIF returns a GIF frame source for the GIF stream held in data.
// The stream's block structure and global background index are checked
// for validity, but no image data is decompressed.
func OpenGIF(data []byte) (*GIF, error) {
	h, err := scanGIF(data)
	if err != nil {
		return nil, err
	}
	if h.frames == 0 {
		return nil, ErrEmptyAnimation
	}
	background := image.Image(image.Transparent)
	if len(h.palette) != 0 {
		if int(h.background) >= len(h.palette) {
			return nil, fmt.Errorf("global background colour index not in palette: %d", h.background)
		}
		background = &image.Uniform{h.palette[h.background]}
	}
	return &GIF{
		data:       data,
		frames:     h.frames,
		loops:      h.loopCount,
		canvas:     image.NewNRGBA(image.Rect(0, 0, h.width, h.height)),
		background: background,
	}, nil
}

// gifStream is the structure of a GIF stream.
type gifStream struct {
	width, height int
	palette       color.Palette
	background    uint8
	frames        int
	// loopCount follows the image/gif convention,
	// -1 is play once and 0 is forever.
	loopCount int
}

const (
	gifExtension  = 0x21
	gifImage      = 0x2c
	gifTrailer    = 0x3b
	gifAppExt     = 0xff
	gifColorTable = 0x80
)

// scanGIF walks the blocks of a GIF stream, skipping image data.
func scanGIF(data []byte) (*gifStream, error) {
	const screen = 13
	if len(data) < screen {
		return nil, io.ErrUnexpectedEOF
	}
	if !hasMagic("GIF8?a", AsReadPeeker(bytes.NewReader(data))) {
		return nil, errors.New("not a GIF file")
	}
	h := &gifStream{
		width:      int(binary.LittleEndian.Uint16(data[6:8])),
		height:     int(binary.LittleEndian.Uint16(data[8:10])),
		background: data[11],
		loopCount:  -1,
	}
	if h.width == 0 || h.height == 0 {
		return nil, fmt.Errorf("invalid logical screen size: %dx%d", h.width, h.height)
	}
	pos := screen
	if flags := data[10]; flags&gifColorTable != 0 {
		n := 1 << (flags&7 + 1)
		if len(data) < pos+3*n {
			return nil, io.ErrUnexpectedEOF
		}
		h.palette = make(color.Palette, n)
		for i := range h.palette {
			c := data[pos+3*i:]
			h.palette[i] = color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
		}
		pos += 3 * n
	}
	var err error
	for {
		if pos >= len(data) {
			return nil, io.ErrUnexpectedEOF
		}
		switch data[pos] {
		case gifExtension:
			if pos+2 > len(data) {
				return nil, io.ErrUnexpectedEOF
			}
			label := data[pos+1]
			pos += 2
			const netscape = "\x0bNETSCAPE2.0"
			if label == gifAppExt && hasPrefixAt(data, pos, netscape) {
				pos += len(netscape)
				if pos+4 <= len(data) && data[pos] == 3 && data[pos+1] == 1 {
					h.loopCount = int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
				}
			}
		case gifImage:
			const descriptor = 10
			if pos+descriptor > len(data) {
				return nil, io.ErrUnexpectedEOF
			}
			flags := data[pos+9]
			pos += descriptor
			if flags&gifColorTable != 0 {
				pos += 3 << (flags&7 + 1)
			}
			// Skip the LZW minimum code size.
			pos++
			h.frames++
		case gifTrailer:
			return h, nil
		default:
			return nil, fmt.Errorf("unknown GIF block type: %#x", data[pos])
		}
		pos, err = skipSubBlocks(data, pos)
		if err != nil {
			return nil, err
		}
	}
}

func hasPrefixAt(data []byte, pos int, prefix string) bool {
	return pos+len(prefix) <= len(data) && string(data[pos:pos+len(prefix)]) == prefix
}

// skipSubBlocks returns the position after the data sub-blocks
// starting at pos.
func skipSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return 0, io.ErrUnexpectedEOF
		}
		n := int(data[pos])
		pos += n + 1
		if n == 0 {
			return pos, nil
		}
	}
}

// Len returns the number of frames in the GIF.
func (s *GIF) Len() int { return s.frames }

// Size returns the size of the GIF's logical screen.
func (s *GIF) Size() Size { return SizeOf(s.canvas.Bounds()) }

// LoopCount returns the number of times the GIF should be played. Zero
// means forever.
func (s *GIF) LoopCount() int {
	switch {
	case s.loops == 0:
		return 0
	case s.loops < 0:
		return 1
	default:
		return s.loops + 1
	}
}

const (
	restoreBackground = 2
	restorePrevious   = 3
)

// Next returns the next composited GIF frame.
func (s *GIF) Next() (RawFrame, error) {
	if s.err != nil {
		return RawFrame{}, s.err
	}
	if s.next >= s.frames {
		return RawFrame{}, io.EOF
	}
	if s.g == nil {
		g, err := gif.DecodeAll(bytes.NewReader(s.data))
		if err != nil {
			s.err = err
			return RawFrame{}, err
		}
		if len(g.Image) != s.frames {
			s.err = fmt.Errorf("decoded %d frames from stream with %d image blocks", len(g.Image), s.frames)
			return RawFrame{}, s.err
		}
		s.g = g
		s.data = nil
	}
	if s.next > 0 {
		s.dispose(s.next - 1)
	}
	frame := s.g.Image[s.next]
	if s.disposal(s.next) == restorePrevious {
		if s.restore == nil {
			s.restore = image.NewNRGBA(s.canvas.Bounds())
		}
		copy(s.restore.Pix, s.canvas.Pix)
	}
	draw.Draw(s.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

	var delay uint32
	if s.g.Delay != nil && s.g.Delay[s.next] > 0 {
		delay = 10 * uint32(s.g.Delay[s.next])
	}
	s.next++
	return RawFrame{
		Image: cloneNRGBA(s.canvas),
		Delay: Delay{Num: delay, Den: 1},
	}, nil
}

func (s *GIF) disposal(i int) byte {
	if s.g.Disposal == nil {
		return 0
	}
	return s.g.Disposal[i]
}

// dispose applies the disposal method of frame i to the canvas.
func (s *GIF) dispose(i int) {
	switch s.disposal(i) {
	case restoreBackground:
		r := s.g.Image[i].Bounds()
		draw.Draw(s.canvas, r, s.background, image.Point{}, draw.Src)
	case restorePrevious:
		if s.restore != nil {
			copy(s.canvas.Pix, s.restore.Pix)
		}
	}
}
