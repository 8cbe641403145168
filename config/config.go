// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides animplay configuration types and schemas.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Config is a complete configuration.
type Config struct {
	Decode *Decode `json:"decode,omitempty" toml:"decode"`
	Play   *Play   `json:"play,omitempty" toml:"play"`
	Export *Export `json:"export,omitempty" toml:"export"`
	Log    *Log    `json:"log,omitempty" toml:"log"`
}

// Decode is the animation decoding configuration.
type Decode struct {
	// Width and Height are the requested canvas size.
	// If only one is given, the other is chosen to keep
	// the animation's aspect ratio.
	Width  *int `json:"width,omitempty" toml:"width"`
	Height *int `json:"height,omitempty" toml:"height"`
	// AllowInexact allows the requested size to be
	// ignored when it would enlarge the animation.
	AllowInexact bool `json:"allow_inexact,omitempty" toml:"allow_inexact"`
	// Resampler is the name of the interpolator used
	// when resizing frames. The default is "bilinear".
	Resampler string `json:"resampler,omitempty" toml:"resampler"`
	// AllowStill allows single frame images to be
	// played as one frame animations.
	AllowStill bool `json:"allow_still,omitempty" toml:"allow_still"`
}

// Play is the real-time playback configuration.
type Play struct {
	// Loops is the number of times to play the animation.
	// Zero uses the animation's loop count and a negative
	// value loops forever.
	Loops *int `json:"loops,omitempty" toml:"loops"`
	// Ticks limits the number of frames served.
	// Zero is no limit.
	Ticks *int `json:"ticks,omitempty" toml:"ticks"`
}

// Export is the frame export configuration.
type Export struct {
	// Format is the image encoding of exported
	// frames; "png", "bmp" or "tiff".
	Format string `json:"format,omitempty" toml:"format"`
	// Select is a CEL expression selecting frames
	// to export.
	Select string `json:"select,omitempty" toml:"select"`
}

// Log is the logging configuration.
type Log struct {
	Level     *slog.Level `json:"level,omitempty" toml:"level"`
	AddSource *bool       `json:"add_source,omitempty" toml:"add_source"`
}

// Schema is the schema for a valid configuration.
const Schema = `
{
	decode?: _#decode
	play?:   _#play
	export?: _#export
	log?:    _#log
}

_#decode: {
	width?:         int & >0
	height?:        int & >0
	allow_inexact?: bool
	resampler?:     "nearest" | "approx_bilinear" | "bilinear" | "catmull_rom"
	allow_still?:   bool
}

_#play: {
	loops?: int
	ticks?: int & >=0
}

_#export: {
	format?: "png" | "bmp" | "tiff"
	select?: string
}

_#log: {
	level?:      =~"(?i)^(?:debug|info|warn|error)(?:[+-][0-9]+)?$"
	add_source?: bool
}
`

// Sum is a comparable optional SHA-1 sum.
type Sum [sha1.Size]byte

// Equal returns whether s is equal to other.
func (s *Sum) Equal(other *Sum) bool {
	switch {
	case s == other:
		return true
	case s != nil && other != nil:
		return *s == *other
	default:
		return false
	}
}

func (s *Sum) String() string {
	if s == nil {
		return ""
	}
	return hex.EncodeToString(s[:])
}

func (s *Sum) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(s)) {
		return fmt.Errorf("invalid length: %d != %d", len(text), hex.EncodedLen(len(s)))
	}
	_, err := hex.Decode(s[:], text)
	if err != nil {
		return err
	}
	return nil
}

func (s *Sum) MarshalText() (text []byte, err error) {
	if s == nil {
		return nil, nil
	}
	text = make([]byte, hex.EncodedLen(len(s)))
	hex.Encode(text, s[:])
	return text, nil
}
