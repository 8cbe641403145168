// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
)

// Decoder lazily decodes frames from a FrameSource and caches them. Each
// frame is pulled from the source, resized and premultiplied at most once.
// The cache only grows and cached frames are never altered.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	format string
	src    FrameSource
	size   Size
	target Size

	resampler Resampler
	log       *slog.Logger

	frames    []*Frame
	exhausted bool
	// err is the sticky decode or resize failure
	// at index len(frames).
	err    error
	closed bool
}

// Option is a Decoder option.
type Option func(*options)

type options struct {
	log        *slog.Logger
	resampler  Resampler
	allowStill bool
}

// WithLogger sets the logger used by a Decoder. If log is nil, logging
// is discarded.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithResampler sets the Resampler used to resize frames when a target
// size is configured. The default is bilinear interpolation.
func WithResampler(r Resampler) Option {
	return func(o *options) {
		o.resampler = r
	}
}

// AllowStill allows Open to accept single frame images, returning a one
// frame animation.
func AllowStill() Option {
	return func(o *options) {
		o.allowStill = true
	}
}

func newOptions(opts []Option) options {
	o := options{resampler: Scaler{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	if o.resampler == nil {
		o.resampler = Scaler{}
	}
	return o
}

// NewDecoder returns a new Decoder for frames from src on a canvas of the
// given size. No frames are decoded.
func NewDecoder(src FrameSource, size Size, opts ...Option) (*Decoder, error) {
	if src == nil {
		return nil, &FormatError{Err: errors.New("nil frame source")}
	}
	return newDecoder("", src, size, newOptions(opts))
}

// Format returns the name of the format the Decoder was opened with, or
// the empty string if it was constructed directly.
func (d *Decoder) Format() string { return d.format }

// Size returns the canvas size declared by the frame source.
func (d *Decoder) Size() Size { return d.size }

// TargetSize returns the configured target size and whether it is set.
func (d *Decoder) TargetSize() (Size, bool) { return d.target, !d.target.IsZero() }

// CanvasSize returns the size in effect for newly decoded frames: the
// target size if one is configured, otherwise the source size.
func (d *Decoder) CanvasSize() Size {
	if d.target.IsZero() {
		return d.size
	}
	return d.target
}

// Configure sets the target size for frames decoded after the call. The
// zero Size clears the target. Frames that are already cached keep the
// size they were decoded at.
func (d *Decoder) Configure(target Size) {
	d.target = target
	d.log.LogAttrs(context.Background(), slog.LevelDebug, "configure", slog.Any("target", target), slog.Int("cached", len(d.frames)))
}

// Len returns the number of cached frames.
func (d *Decoder) Len() int { return len(d.frames) }

// Complete returns whether the frame source has been exhausted, so Len
// is the total number of frames in the animation.
func (d *Decoder) Complete() bool { return d.exhausted }

// LoopCount returns the number of times the animation declares it should
// be played, with zero meaning forever. Sources that do not declare a
// loop count loop forever.
func (d *Decoder) LoopCount() int {
	if c, ok := d.src.(LoopCounter); ok {
		return c.LoopCount()
	}
	return 0
}

// Frame returns the cached frame at index i without decoding.
func (d *Decoder) Frame(i int) (*Frame, bool) {
	if i < 0 || i >= len(d.frames) {
		return nil, false
	}
	return d.frames[i], true
}

// Ensure returns the frame at index i, decoding forward from the source
// as needed. If the source is exhausted before index i is reached,
// Ensure returns ErrEndOfSequence. A failure to decode or resize the frame
// at some index is permanent; that index and all following indexes
// return the same error and the cache is left unchanged.
func (d *Decoder) Ensure(i int) (*Frame, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if i < 0 {
		return nil, fmt.Errorf("invalid frame index: %d", i)
	}
	for i >= len(d.frames) {
		if d.err != nil {
			return nil, d.err
		}
		if d.exhausted {
			return nil, ErrEndOfSequence
		}
		err := d.decodeNext()
		if err != nil {
			return nil, err
		}
	}
	return d.frames[i], nil
}

// DecodeAll decodes all remaining frames and returns the number of frames
// in the animation.
func (d *Decoder) DecodeAll() (int, error) {
	for !d.exhausted {
		_, err := d.Ensure(len(d.frames))
		if err != nil && !errors.Is(err, ErrEndOfSequence) {
			return len(d.frames), err
		}
	}
	return len(d.frames), nil
}

func (d *Decoder) decodeNext() error {
	ctx := context.Background()
	idx := len(d.frames)
	raw, err := d.src.Next()
	if err != nil {
		if err == io.EOF {
			d.exhausted = true
			d.log.LogAttrs(ctx, slog.LevelDebug, "end of sequence", slog.Int("frames", idx))
			return ErrEndOfSequence
		}
		d.err = &DecodeError{Index: idx, Err: err}
		d.log.LogAttrs(ctx, slog.LevelWarn, "failed to decode frame", slog.Int("index", idx), slog.Any("error", err))
		return d.err
	}
	if raw.Image == nil {
		d.err = &DecodeError{Index: idx, Err: errors.New("missing frame image")}
		d.log.LogAttrs(ctx, slog.LevelWarn, "failed to decode frame", slog.Int("index", idx), slog.Any("error", d.err))
		return d.err
	}

	img := raw.Image
	from := SizeOf(img.Bounds())
	offset := raw.Offset
	resized := false
	if !d.target.IsZero() && d.target != d.size {
		to := frameTarget(from, d.size, d.target)
		img, err = d.resampler.Resize(img, to)
		if err != nil {
			d.err = &ResizeError{Index: idx, From: from, To: to, Err: err}
			d.log.LogAttrs(ctx, slog.LevelWarn, "failed to resize frame", slog.Int("index", idx), slog.Any("error", err))
			return d.err
		}
		offset = frameOffset(offset, SizeOf(img.Bounds()), d.size, d.target)
		resized = true
	} else {
		// Premultiplication works in place, so never
		// alter a buffer the source may still hold.
		img = cloneNRGBA(img)
	}
	f := &Frame{
		Offset: offset,
		Image:  Premultiply(img),
		Delay:  raw.Delay,
	}
	d.frames = append(d.frames, f)
	d.log.LogAttrs(ctx, slog.LevelDebug, "decoded frame", slog.Int("index", idx), slog.Any("size", f.Size()), slog.Bool("resized", resized))
	return nil
}

// Close releases the frame source and the frame cache. Close is
// idempotent. Subsequent calls to Ensure return ErrClosed.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.frames = nil
	var err error
	if c, ok := d.src.(io.Closer); ok {
		err = c.Close()
	}
	d.log.LogAttrs(context.Background(), slog.LevelDebug, "close")
	return err
}

func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rectangle{Max: b.Size()})
	w := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], img.Pix[y*img.Stride:y*img.Stride+w])
	}
	return dst
}
