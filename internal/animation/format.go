// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrNotAnimated is returned by format openers when the data is a valid
// image that holds only a single frame.
var ErrNotAnimated = errors.New("animation: not an animated image")

// OpenFunc opens the frame source held in data and returns it with the
// canvas size it declares. An OpenFunc must not decode frame pixels.
type OpenFunc func(data []byte) (FrameSource, Size, error)

type format struct {
	name, magic string
	open        OpenFunc
}

var (
	formatsMu     sync.Mutex
	atomicFormats atomic.Pointer[[]format]
)

// RegisterFormat registers an animated image format for use by Open.
// Name is the name of the format, like "apng" or "gif". Magic is the
// magic prefix that identifies the format's encoding. The magic string
// can contain "?" wildcards that each match any one byte. Open is the
// function that opens the frame source.
func RegisterFormat(name, magic string, open OpenFunc) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	var formats []format
	if f := atomicFormats.Load(); f != nil {
		formats = *f
	}
	formats = append(formats[:len(formats):len(formats)], format{name: name, magic: magic, open: open})
	atomicFormats.Store(&formats)
}

// Formats returns the names of the registered formats in the order they
// are tried.
func Formats() []string {
	f := atomicFormats.Load()
	if f == nil {
		return nil
	}
	names := make([]string, len(*f))
	for i, ft := range *f {
		names[i] = ft.name
	}
	return names
}

// Open returns a Decoder for the animated image held in data. Formats
// are tried in registration order and the first that accepts the data
// is used. No frames are decoded.
//
// If no format accepts the data, Open returns a *FormatError. With the
// AllowStill option, data holding a single frame image in any format
// known to the image package is opened as a one frame animation.
func Open(data []byte, opts ...Option) (*Decoder, error) {
	o := newOptions(opts)
	r := AsReadPeeker(bytes.NewReader(data))
	var first error
	if f := atomicFormats.Load(); f != nil {
		for _, f := range *f {
			if !hasMagic(f.magic, r) {
				continue
			}
			src, size, err := f.open(data)
			if err != nil {
				if first == nil {
					var ferr *FormatError
					if !errors.As(err, &ferr) {
						err = &FormatError{Format: f.name, Err: err}
					}
					first = err
				}
				continue
			}
			return newDecoder(f.name, src, size, o)
		}
	}
	if o.allowStill {
		src, size, err := openStill(data)
		if err == nil {
			return newDecoder("still", src, size, o)
		}
		if first == nil {
			first = &FormatError{Format: "still", Err: err}
		}
	}
	if first == nil {
		first = &FormatError{Err: ErrUnknownFormat}
	}
	return nil, first
}

func newDecoder(name string, src FrameSource, size Size, o options) (*Decoder, error) {
	if !size.Valid() {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}
		return nil, &FormatError{Format: name, Err: errors.New("invalid canvas size")}
	}
	o.log.Debug("open", "format", name, "size", size)
	return &Decoder{
		format:    name,
		src:       src,
		size:      size,
		resampler: o.resampler,
		log:       o.log,
	}, nil
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}
