// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
)

// Policy is a playback policy applied by a Player tick.
type Policy int

const (
	// Hold serves the current frame without moving the play index.
	Hold Policy = iota
	// Advance serves the current frame and then moves the play index
	// forward, wrapping to the start once all frames are known.
	Advance
	// Reset moves the play index to the start before serving the frame.
	Reset
)

func (p Policy) String() string {
	switch p {
	case Hold:
		return "hold"
	case Advance:
		return "advance"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy returns the Policy with the given name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "hold":
		return Hold, nil
	case "advance":
		return Advance, nil
	case "reset":
		return Reset, nil
	default:
		return 0, fmt.Errorf("unknown policy: %q", s)
	}
}

// Player serves frames from a Decoder one tick at a time.
//
// A Player is not safe for concurrent use.
type Player struct {
	dec   *Decoder
	index int

	// current is the most recently served frame.
	current *Frame
}

// NewPlayer returns a Player for frames from d starting at index zero.
func NewPlayer(d *Decoder) *Player {
	return &Player{dec: d}
}

// Decoder returns the Player's Decoder.
func (p *Player) Decoder() *Decoder { return p.dec }

// Index returns the current play index. The index may be one past the
// end of the decoded frames while the animation is incompletely decoded.
func (p *Player) Index() int { return p.index }

// Current returns the frame served by the last successful tick, or nil
// if no frame has been served.
func (p *Player) Current() *Frame { return p.current }

// Tick writes the frame selected by policy into out as RGBA8 premultiplied
// pixels and returns the frame's delay in milliseconds.
//
// If out is too small for the frame, a *BufferTooSmallError is returned
// and out is not altered. If the frame's delay is malformed a *DecodeError
// is returned and out is not altered. The play index is only advanced
// after a frame has been written.
func (p *Player) Tick(out []byte, policy Policy) (int, error) {
	switch policy {
	case Hold, Advance:
	case Reset:
		p.index = 0
	default:
		return 0, fmt.Errorf("invalid policy: %v", policy)
	}

	f, err := p.dec.Ensure(p.index)
	if errors.Is(err, ErrEndOfSequence) {
		if p.dec.Len() == 0 {
			return 0, ErrEmptyAnimation
		}
		// Play reached the end as decoding completed.
		p.index = 0
		f, err = p.dec.Ensure(p.index)
	}
	if err != nil {
		return 0, err
	}

	delay, err := f.Delay.Milliseconds()
	if err != nil {
		return 0, &DecodeError{Index: p.index, Err: err}
	}
	err = copyFrame(out, f)
	if err != nil {
		return 0, err
	}
	p.current = f

	if policy == Advance {
		p.index++
		if p.dec.Complete() {
			p.index %= p.dec.Len()
		}
	}
	return delay, nil
}

// copyFrame writes the pixels of f into out if it is large enough.
func copyFrame(out []byte, f *Frame) error {
	img := f.Image
	size := f.Size()
	need := size.Bytes()
	if len(out) < need {
		return &BufferTooSmallError{Need: need, Have: len(out)}
	}
	w := size.Width * 4
	if img.Stride == w {
		copy(out, img.Pix[:need])
		return nil
	}
	for y := 0; y < size.Height; y++ {
		copy(out[y*w:(y+1)*w], img.Pix[y*img.Stride:y*img.Stride+w])
	}
	return nil
}
