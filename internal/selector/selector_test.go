// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package selector

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rogpeppe/go-internal/testscript"

	"github.com/kortschak/animplay/internal/slogext"
)

var update = flag.Bool("update", false, "update testscript output files")

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"select": selectMain,
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()

	p := testscript.Params{
		Dir:           filepath.Join("testdata"),
		UpdateScripts: *update,
	}
	testscript.Run(t, p)
}

// selectMain evaluates an expression against each JSON encoded Vars
// value in a file and prints the indexes of selected frames.
func selectMain() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %s:

  %[1]s -frames <frames.json> <src.cel>

`, os.Args[0])
		flag.PrintDefaults()
	}
	frames := flag.String("frames", "", "path to a JSON array of frame variables")
	flag.Parse()
	if len(flag.Args()) != 1 || *frames == "" {
		flag.Usage()
		return 2
	}

	src, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	b, err := os.ReadFile(*frames)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	var vars []Vars
	err = json.Unmarshal(b, &vars)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	log := slog.New(slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	prg, err := Compile(strings.TrimSpace(string(src)), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	var selected []int
	for _, v := range vars {
		ok, err := prg.Match(v)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if ok {
			selected = append(selected, v.Index)
		}
	}
	fmt.Println(selected)
	return 0
}

func TestMatch(t *testing.T) {
	frames := []Vars{
		{Index: 0, Tick: 0, Delay: 100, Width: 10, Height: 10, Frames: 1},
		{Index: 1, Tick: 1, Delay: 50, Width: 4, Height: 2, X: 3, Y: 4, Frames: 2},
		{Index: 2, Tick: 2, Delay: 100, Width: 10, Height: 10, Frames: 3},
		{Index: 0, Tick: 3, Delay: 100, Width: 10, Height: 10, Frames: 3},
	}
	for _, test := range []struct {
		src  string
		want []int
	}{
		{src: "", want: []int{0, 1, 2, 3}},
		{src: "index % 2 == 0", want: []int{0, 2, 3}},
		{src: "delay >= 100 && tick < 3", want: []int{0, 2}},
		{src: "x > 0 || y > 0", want: []int{1}},
		{src: "width * height < 100", want: []int{1}},
		{src: "frames == 3 && index == 0", want: []int{3}},
		{src: "false", want: nil},
	} {
		t.Run(test.src, func(t *testing.T) {
			prg, err := Compile(test.src, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got []int
			for _, v := range frames {
				ok, err := prg.Match(v)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if ok {
					got = append(got, v.Tick)
				}
			}
			if !cmp.Equal(got, test.want) {
				t.Errorf("unexpected selection:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{
		"index",
		"name == 'frame'",
		"index ==",
		"debug('tag', index)",
	} {
		_, err := Compile(src, nil)
		if err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slogext.NewJSONHandler(&buf, &slogext.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	prg, err := Compile("debug('delay', delay) > 50", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := prg.Match(Vars{Delay: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected match")
	}
	if !strings.Contains(buf.String(), `"tag":"delay"`) {
		t.Errorf("debug value not logged: %s", &buf)
	}
}
