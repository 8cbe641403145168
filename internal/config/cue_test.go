// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/animplay/config"
)

var validateTests = []struct {
	name      string
	config    *Config
	wantPaths [][]string
	wantErr   bool
}{
	{
		name:   "empty",
		config: &Config{},
	},
	{
		name: "valid",
		config: &Config{
			Decode: &Decode{Width: ptr(10), Height: ptr(20), Resampler: "nearest"},
			Play:   &Play{Loops: ptr(0), Ticks: ptr(0)},
			Export: &Export{Format: "png", Select: "true"},
			Log:    &Log{Level: ptr(slog.LevelError + 2), AddSource: ptr(false)},
		},
	},
	{
		name: "invalid_size",
		config: &Config{
			Decode: &Decode{Width: ptr(-1), Height: ptr(0)},
		},
		wantPaths: [][]string{
			{"decode", "height"},
			{"decode", "width"},
		},
		wantErr: true,
	},
	{
		name: "invalid_resampler",
		config: &Config{
			Decode: &Decode{Resampler: "box"},
		},
		wantPaths: [][]string{{"decode", "resampler"}},
		wantErr:   true,
	},
}

func TestValidate(t *testing.T) {
	for _, test := range validateTests {
		t.Run(test.name, func(t *testing.T) {
			paths, err := Validate(config.Schema, test.config)
			if (err != nil) != test.wantErr {
				t.Errorf("unexpected error: %v", err)
			}
			if !cmp.Equal(test.wantPaths, paths) {
				t.Errorf("unexpected paths:\n--- want:\n+++ got:\n%s", cmp.Diff(test.wantPaths, paths))
			}
		})
	}
}

func TestUnique(t *testing.T) {
	for _, test := range []struct {
		paths [][]string
		want  [][]string
	}{
		{paths: nil, want: nil},
		{paths: [][]string{{"a"}}, want: [][]string{{"a"}}},
		{
			paths: [][]string{{"b", "a"}, {"a"}, {"b", "a"}, {"a", "b"}, {"a"}},
			want:  [][]string{{"a"}, {"a", "b"}, {"b", "a"}},
		},
	} {
		got := unique(test.paths)
		if !cmp.Equal(test.want, got) {
			t.Errorf("unexpected unique paths:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
		}
	}
}
