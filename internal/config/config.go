// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides configuration loading, validation and file
// watching functions.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kortschak/animplay/config"
)

// Alias the publicly visible types.
type (
	Config = config.Config
	Decode = config.Decode
	Play   = config.Play
	Export = config.Export
	Log    = config.Log
	Sum    = config.Sum
)

// Load reads and parses the TOML configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a TOML configuration and validates it against
// [config.Schema]. Unknown keys are an error. If the configuration is
// invalid, the returned error is an *InvalidError.
func Parse(b []byte) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undec := md.Undecoded(); len(undec) != 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	paths, err := Validate(config.Schema, cfg)
	if err != nil {
		return nil, &InvalidError{Paths: paths, Err: err}
	}
	return cfg, nil
}

// InvalidError is returned when a configuration does not conform to
// the schema.
type InvalidError struct {
	// Paths is the sorted list of invalid field paths.
	Paths [][]string
	Err   error
}

func (e *InvalidError) Error() string {
	p := make([]string, len(e.Paths))
	for i, path := range e.Paths {
		p[i] = strings.Join(path, ".")
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(p, ", "))
}

func (e *InvalidError) Unwrap() error { return e.Err }

// Default returns a configuration holding default values.
func Default() *Config {
	return &Config{
		Decode: &Decode{Resampler: "bilinear"},
		Play:   &Play{},
		Export: &Export{Format: "png"},
		Log:    &Log{},
	}
}

// Merge returns base with the fields set in cfg replacing its values.
// Neither base nor cfg is altered.
func Merge(base, cfg *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	dst := &Config{}
	if base.Decode != nil {
		d := *base.Decode
		dst.Decode = &d
	}
	if base.Play != nil {
		p := *base.Play
		dst.Play = &p
	}
	if base.Export != nil {
		e := *base.Export
		dst.Export = &e
	}
	if base.Log != nil {
		l := *base.Log
		dst.Log = &l
	}
	if cfg == nil {
		return dst
	}
	if d := cfg.Decode; d != nil {
		if dst.Decode == nil {
			dst.Decode = &Decode{}
		}
		if d.Width != nil {
			dst.Decode.Width = d.Width
		}
		if d.Height != nil {
			dst.Decode.Height = d.Height
		}
		if d.Resampler != "" {
			dst.Decode.Resampler = d.Resampler
		}
		dst.Decode.AllowInexact = dst.Decode.AllowInexact || d.AllowInexact
		dst.Decode.AllowStill = dst.Decode.AllowStill || d.AllowStill
	}
	if p := cfg.Play; p != nil {
		if dst.Play == nil {
			dst.Play = &Play{}
		}
		if p.Loops != nil {
			dst.Play.Loops = p.Loops
		}
		if p.Ticks != nil {
			dst.Play.Ticks = p.Ticks
		}
	}
	if e := cfg.Export; e != nil {
		if dst.Export == nil {
			dst.Export = &Export{}
		}
		if e.Format != "" {
			dst.Export.Format = e.Format
		}
		if e.Select != "" {
			dst.Export.Select = e.Select
		}
	}
	if l := cfg.Log; l != nil {
		if dst.Log == nil {
			dst.Log = &Log{}
		}
		if l.Level != nil {
			dst.Log.Level = l.Level
		}
		if l.AddSource != nil {
			dst.Log.AddSource = l.AddSource
		}
	}
	return dst
}
