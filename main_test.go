// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/gotooltest"
	"github.com/rogpeppe/go-internal/testscript"

	"github.com/kortschak/animplay/internal/apng"
)

var (
	update = flag.Bool("update", false, "update tests")
	keep   = flag.Bool("keep", false, "keep $WORK directory after tests")
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"animplay": Main,
		"mkanim":   mkanim,
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()

	p := testscript.Params{
		Dir:           filepath.Join("testdata"),
		UpdateScripts: *update,
		TestWork:      *keep,
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"sleep":          sleep,
			"grep_from_file": grep,
		},
	}
	if err := gotooltest.Setup(&p); err != nil {
		t.Fatal(err)
	}
	testscript.Run(t, p)
}

func sleep(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! sleep")
	}
	if len(args) != 1 {
		ts.Fatalf("usage: sleep duration")
	}
	d, err := time.ParseDuration(args[0])
	ts.Check(err)
	time.Sleep(d)
}

func grep(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 2 {
		ts.Fatalf("usage: grep_from_file pattern_file data")
	}
	pattern, err := os.ReadFile(ts.MkAbs(args[0]))
	ts.Check(err)
	data, err := os.ReadFile(ts.MkAbs(args[1]))
	ts.Check(err)
	re, err := regexp.Compile("(?m)" + string(pattern))
	ts.Check(err)

	if neg {
		if re.Match(data) {
			ts.Logf("[grep_from_file]\n%s\n", data)
			ts.Fatalf("unexpected match for %#q found in grep_from_file: %s\n", pattern, re.Find(data))
		}
	} else {
		if !re.Match(data) {
			ts.Logf("[grep_from_file]\n%s\n", data)
			ts.Fatalf("no match for %#q found in grep_from_file", pattern)
		}
	}
}

// frameColors are the colors of successive frames written by mkanim.
var frameColors = []color.NRGBA{
	{R: 0xff, A: 0xff},
	{G: 0xff, A: 0xff},
	{B: 0xff, A: 0xff},
	{R: 0xff, G: 0xff, A: 0x80},
	{A: 0},
}

// mkanim writes a solid color animation fixture.
func mkanim() int {
	format := flag.String("format", "apng", "animation format (apng or gif)")
	size := flag.String("size", "4x3", "canvas size as WxH")
	delays := flag.String("delays", "100,50,30", "comma separated frame delays in milliseconds")
	loops := flag.Int("loops", 0, "loop count (0 is forever)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mkanim [-format apng|gif] [-size WxH] [-delays ms,...] [-loops n] <file>")
		return 2
	}
	width, height, err := parseSize(*size)
	if err != nil || width == 0 || height == 0 {
		fmt.Fprintf(os.Stderr, "invalid size: %q\n", *size)
		return 2
	}
	var ms []int
	for _, d := range strings.Split(*delays, ",") {
		v, err := strconv.Atoi(d)
		if err != nil || v < 0 || v > 1<<16-1 {
			fmt.Fprintf(os.Stderr, "invalid delay: %q\n", d)
			return 2
		}
		ms = append(ms, v)
	}
	if len(ms) > len(frameColors) {
		fmt.Fprintf(os.Stderr, "too many frames: %d > %d\n", len(ms), len(frameColors))
		return 2
	}

	f, err := os.Create(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	rect := image.Rect(0, 0, width, height)
	switch *format {
	case "apng":
		frames := make([]apng.Frame, len(ms))
		for i, d := range ms {
			img := image.NewNRGBA(rect)
			for j := 0; j < len(img.Pix); j += 4 {
				c := frameColors[i]
				img.Pix[j+0], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = c.R, c.G, c.B, c.A
			}
			frames[i] = apng.Frame{Image: img, DelayNum: uint16(d), DelayDen: 1000}
		}
		err = apng.Encode(f, frames, *loops)
	case "gif":
		pal := make(color.Palette, len(frameColors))
		for i, c := range frameColors {
			pal[i] = c
		}
		// The GIF loop count is the number of repeats
		// with -1 meaning play once.
		g := &gif.GIF{}
		switch {
		case *loops == 1:
			g.LoopCount = -1
		case *loops > 1:
			g.LoopCount = *loops - 1
		}
		for i, d := range ms {
			img := image.NewPaletted(rect, pal)
			for j := range img.Pix {
				img.Pix[j] = uint8(i)
			}
			g.Image = append(g.Image, img)
			g.Delay = append(g.Delay, d/10)
		}
		err = gif.EncodeAll(f, g)
	default:
		err = fmt.Errorf("unknown format: %q", *format)
	}
	if err != nil {
		f.Close()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	err = f.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

var sizeTests = []struct {
	in            string
	width, height int
	wantErr       bool
}{
	{in: ""},
	{in: "4x3", width: 4, height: 3},
	{in: "4x", width: 4},
	{in: "x3", height: 3},
	{in: "x", wantErr: true},
	{in: "4", wantErr: true},
	{in: "0x3", wantErr: true},
	{in: "4x-1", wantErr: true},
	{in: "ax3", wantErr: true},
}

func TestParseSize(t *testing.T) {
	for _, test := range sizeTests {
		w, h, err := parseSize(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for %q: got:%v want error:%t", test.in, err, test.wantErr)
			continue
		}
		if w != test.width || h != test.height {
			t.Errorf("unexpected size for %q: got:%dx%d want:%dx%d", test.in, w, h, test.width, test.height)
		}
	}
}
