// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfSequence is returned by Decoder.Ensure when the frame source
	// is exhausted before the requested index. It is not a failure.
	ErrEndOfSequence = errors.New("animation: end of sequence")

	// ErrEmptyAnimation is returned when an animation yields no frames.
	ErrEmptyAnimation = errors.New("animation: missing frames, are you sure this is an animated image?")

	// ErrClosed is returned by operations on a closed Decoder.
	ErrClosed = errors.New("animation: decoder closed")

	// ErrInvalidHandle is returned by Table operations on an unknown handle.
	ErrInvalidHandle = errors.New("animation: invalid handle")

	// ErrUnknownFormat is the cause of a FormatError when no registered
	// format recognises the data.
	ErrUnknownFormat = errors.New("animation: unknown format")
)

// FormatError is returned by Open when the data is not a recognised
// animated image or declares no frames.
type FormatError struct {
	// Format is the name of the format that rejected the
	// data, or empty if no format matched.
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("format error: %v", e.Err)
	}
	return fmt.Sprintf("format error: %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// DecodeError is returned when a frame in an otherwise valid animation
// is malformed.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: frame %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResizeError is returned when a frame could not be resampled to the
// target size.
type ResizeError struct {
	Index    int
	From, To Size
	Err      error
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("resize error: frame %d: %v to %v: %v", e.Index, e.From, e.To, e.Err)
}

func (e *ResizeError) Unwrap() error { return e.Err }

// BufferTooSmallError is returned when a caller supplied output buffer
// cannot hold a frame.
type BufferTooSmallError struct {
	Need, Have int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("provided output buffer is not large enough, expected: %d bytes but got %d bytes", e.Need, e.Have)
}
