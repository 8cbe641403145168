// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const pngHeader = "\x89PNG\r\n\x1a\n"

// Chunk type names.
const (
	typeIHDR = "IHDR"
	typePLTE = "PLTE"
	typeTRNS = "tRNS"
	typeIDAT = "IDAT"
	typeIEND = "IEND"
	typeACTL = "acTL"
	typeFCTL = "fcTL"
	typeFDAT = "fdAT"
)

// Frame disposal operations.
const (
	DisposeNone       = 0
	DisposeBackground = 1
	DisposePrevious   = 2
)

// Frame blend operations.
const (
	BlendSource = 0
	BlendOver   = 1
)

// chunk is a PNG chunk held in a larger buffer.
type chunk struct {
	typ  string
	data []byte
	// start and end are the offsets of the chunk
	// and of the chunk following it.
	start, end int
}

var errTruncated = errors.New("truncated chunk")

// readChunk returns the chunk starting at offset pos of buf. The chunk's
// CRC is checked.
func readChunk(buf []byte, pos int) (chunk, error) {
	if len(buf)-pos < 12 {
		if pos == len(buf) {
			return chunk{}, io.ErrUnexpectedEOF
		}
		return chunk{}, errTruncated
	}
	n := binary.BigEndian.Uint32(buf[pos : pos+4])
	if uint64(n) > uint64(len(buf)-pos-12) {
		return chunk{}, fmt.Errorf("%w: %q length %d", errTruncated, buf[pos+4:pos+8], n)
	}
	end := pos + 12 + int(n)
	typ := buf[pos+4 : pos+8]
	data := buf[pos+8 : pos+8+int(n)]
	got := crc32.ChecksumIEEE(buf[pos+4 : pos+8+int(n)])
	want := binary.BigEndian.Uint32(buf[end-4 : end])
	if got != want {
		return chunk{}, fmt.Errorf("invalid checksum for %q chunk: got:%08x want:%08x", typ, got, want)
	}
	return chunk{typ: string(typ), data: data, start: pos, end: end}, nil
}

// chunkWriter writes PNG chunks, holding the first error.
type chunkWriter struct {
	w   io.Writer
	hdr [8]byte
	crc [4]byte
	err error
}

func (c *chunkWriter) writeChunk(b []byte, name string) {
	if c.err != nil {
		return
	}
	n := uint32(len(b))
	if int(n) != len(b) {
		c.err = errors.New("apng: chunk is too large")
		return
	}
	binary.BigEndian.PutUint32(c.hdr[:4], n)
	copy(c.hdr[4:], name)
	_, c.err = c.w.Write(c.hdr[:])
	if c.err != nil {
		return
	}
	_, c.err = c.w.Write(b)
	if c.err != nil {
		return
	}
	crc := crc32.NewIEEE()
	crc.Write(c.hdr[4:8])
	crc.Write(b)
	binary.BigEndian.PutUint32(c.crc[:], crc.Sum32())
	_, c.err = c.w.Write(c.crc[:])
}

// frameControl is the content of an fcTL chunk.
type frameControl struct {
	seq              uint32
	width, height    uint32
	xOffset, yOffset uint32
	delayNum         uint16
	delayDen         uint16
	disposeOp        uint8
	blendOp          uint8
}

func parseFrameControl(b []byte) (frameControl, error) {
	if len(b) != 26 {
		return frameControl{}, fmt.Errorf("invalid fcTL length: %d", len(b))
	}
	fc := frameControl{
		seq:       binary.BigEndian.Uint32(b[0:4]),
		width:     binary.BigEndian.Uint32(b[4:8]),
		height:    binary.BigEndian.Uint32(b[8:12]),
		xOffset:   binary.BigEndian.Uint32(b[12:16]),
		yOffset:   binary.BigEndian.Uint32(b[16:20]),
		delayNum:  binary.BigEndian.Uint16(b[20:22]),
		delayDen:  binary.BigEndian.Uint16(b[22:24]),
		disposeOp: b[24],
		blendOp:   b[25],
	}
	if fc.disposeOp > DisposePrevious {
		return fc, fmt.Errorf("invalid dispose_op: %d", fc.disposeOp)
	}
	if fc.blendOp > BlendOver {
		return fc, fmt.Errorf("invalid blend_op: %d", fc.blendOp)
	}
	return fc, nil
}

func (fc frameControl) marshal() []byte {
	b := make([]byte, 26)
	binary.BigEndian.PutUint32(b[0:4], fc.seq)
	binary.BigEndian.PutUint32(b[4:8], fc.width)
	binary.BigEndian.PutUint32(b[8:12], fc.height)
	binary.BigEndian.PutUint32(b[12:16], fc.xOffset)
	binary.BigEndian.PutUint32(b[16:20], fc.yOffset)
	binary.BigEndian.PutUint16(b[20:22], fc.delayNum)
	binary.BigEndian.PutUint16(b[22:24], fc.delayDen)
	b[24] = fc.disposeOp
	b[25] = fc.blendOp
	return b
}

// delay returns the frame delay as a rational number of milliseconds.
// A zero denominator means hundredths of a second.
func (fc frameControl) delay() (num, den uint32) {
	den = uint32(fc.delayDen)
	if den == 0 {
		den = 100
	}
	return uint32(fc.delayNum) * 1000, den
}
