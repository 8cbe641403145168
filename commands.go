// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kortschak/animplay/internal/animation"
	"github.com/kortschak/animplay/internal/config"
	"github.com/kortschak/animplay/internal/export"
	"github.com/kortschak/animplay/internal/selector"
	"github.com/kortschak/animplay/internal/slogext"
)

// runInfo decodes all the frames of an animation and prints a summary of
// the animation and its frames.
func runInfo(ctx context.Context, w io.Writer, cfg *config.Config, args []string, log *slog.Logger) error {
	fs := newFlagSet("info", "[-size WxH] <file>")
	size := fs.String("size", "", "target size as WxH, Wx or xH")
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	dec, err := openFile(path, cfg.Decode, *size, log)
	if err != nil {
		return err
	}
	defer dec.Close()
	n, err := dec.DecodeAll()
	if err != nil {
		return err
	}

	var bytes int
	for i := range n {
		f, _ := dec.Frame(i)
		bytes += f.Size().Bytes()
	}
	fmt.Fprintf(w, "format: %s\n", dec.Format())
	fmt.Fprintf(w, "size: %v\n", dec.Size())
	if target, ok := dec.TargetSize(); ok {
		fmt.Fprintf(w, "target: %v\n", target)
	}
	loops := "forever"
	if l := dec.LoopCount(); l != 0 {
		loops = fmt.Sprint(l)
	}
	fmt.Fprintf(w, "loops: %s\n", loops)
	fmt.Fprintf(w, "frames: %d\n", n)
	fmt.Fprintf(w, "cache: %s\n", humanize.Bytes(uint64(bytes)))
	for i := range n {
		f, _ := dec.Frame(i)
		fmt.Fprintf(w, "frame %d: %v at %v %v\n", i, f.Delay.Duration(), f.Offset, f.Size())
	}
	log.LogAttrs(ctx, slog.LevelDebug, "info", slog.String("path", path), slog.Int("frames", n), slog.Any("cache", slogext.Bytes(bytes)))
	return nil
}

// runExport ticks through one loop of an animation and writes each frame
// selected by the export selection expression to a directory.
func runExport(ctx context.Context, w io.Writer, cfg *config.Config, args []string, log *slog.Logger) error {
	fs := newFlagSet("export", "[-o dir] [-format png|bmp|tiff] [-select expr] [-size WxH] <file>")
	dir := fs.String("o", ".", "output directory")
	format := fs.String("format", cfg.Export.Format, "output format ("+strings.Join(export.Formats(), ", ")+")")
	sel := fs.String("select", cfg.Export.Select, "CEL frame selection expression")
	size := fs.String("size", "", "target size as WxH, Wx or xH")
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	prg, err := selector.Compile(*sel, log)
	if err != nil {
		return usageError(err.Error())
	}
	dec, err := openFile(path, cfg.Decode, *size, log)
	if err != nil {
		return err
	}
	defer dec.Close()
	// The total number of frames is made available to the
	// selection expression.
	frames, err := dec.DecodeAll()
	if err != nil {
		return err
	}

	out, err := export.NewWriter(*dir, *format, log)
	if err != nil {
		return err
	}
	defer out.Close()

	canvas := dec.CanvasSize()
	p := animation.NewPlayer(dec)
	buf := make([]byte, canvas.Bytes())
	for tick := 0; ; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := p.Index()
		delay, err := p.Tick(buf, animation.Advance)
		var short *animation.BufferTooSmallError
		if errors.As(err, &short) {
			buf = make([]byte, short.Need)
			delay, err = p.Tick(buf, animation.Advance)
		}
		if err != nil {
			return err
		}
		f := p.Current()
		ok, err := prg.Match(selector.Vars{
			Index:  idx,
			Tick:   tick,
			Delay:  delay,
			Width:  f.Size().Width,
			Height: f.Size().Height,
			X:      f.Offset.X,
			Y:      f.Offset.Y,
			Frames: frames,
		})
		if err != nil {
			return fmt.Errorf("frame %d: %w", idx, err)
		}
		if ok {
			name, err := out.WriteFrame(idx, f, canvas)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, name)
		}
		if p.Index() == 0 {
			break
		}
	}
	log.LogAttrs(ctx, slog.LevelInfo, "export", slog.String("path", path), slog.Int("written", len(out.Written())))
	return out.Close()
}
