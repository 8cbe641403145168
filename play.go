// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/kortschak/animplay/internal/animation"
	"github.com/kortschak/animplay/internal/config"
)

// errTicksDone is returned by a playback when its tick limit is reached.
var errTicksDone = errors.New("tick limit reached")

// runPlay plays an animation in real time, printing each served frame.
// When watching, the animation is reloaded each time the file's content
// changes.
func runPlay(ctx context.Context, w io.Writer, cfg *config.Config, args []string, log *slog.Logger) error {
	fs := newFlagSet("play", "[-ticks n] [-loops n] [-watch] [-size WxH] <file>")
	var ticksDefault, loopsDefault int
	if cfg.Play != nil {
		if cfg.Play.Ticks != nil {
			ticksDefault = *cfg.Play.Ticks
		}
		if cfg.Play.Loops != nil {
			loopsDefault = *cfg.Play.Loops
		}
	}
	ticks := fs.Int("ticks", ticksDefault, "number of frames to serve before exiting (0 is unlimited)")
	loops := fs.Int("loops", loopsDefault, "number of loops to play (0 uses the animation's loop count, negative plays forever)")
	watch := fs.Bool("watch", false, "reload the animation when the file changes")
	size := fs.String("size", "", "target size as WxH, Wx or xH")
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *ticks < 0 {
		return usageError(fmt.Sprintf("invalid tick count: %d", *ticks))
	}
	// Validate the size before any playback starts.
	_, _, _, err = decodeOptions(cfg.Decode, *size, log)
	if err != nil {
		return err
	}

	pl := &player{
		w:         w,
		loops:     *loops,
		remaining: *ticks,
		limited:   *ticks > 0,
		log:       log.With(slog.String("component", "animplay.play")),
	}
	if !*watch {
		dec, err := openFile(path, cfg.Decode, *size, log)
		if err != nil {
			return err
		}
		defer dec.Close()
		err = pl.play(ctx, dec)
		if errors.Is(err, errTicksDone) {
			return nil
		}
		return err
	}

	changes := make(chan config.Change)
	watcher, err := config.NewWatcher(ctx, path, changes, -1, log)
	if err != nil {
		return err
	}
	defer watcher.Close()

	var (
		cancel = func() {}
		done   chan error
		dec    *animation.Decoder
	)
	stop := func() {
		cancel()
		if done != nil {
			<-done
			done = nil
		}
		if dec != nil {
			dec.Close()
			dec = nil
		}
	}
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			done = nil
			if err == nil || errors.Is(err, errTicksDone) {
				return nil
			}
			// Keep watching for a fixed animation.
			pl.log.LogAttrs(ctx, slog.LevelWarn, "playback failed", slog.Any("error", err))
			fmt.Fprintf(w, "failed: %v\n", err)
		case c := <-changes:
			if c.Err != nil {
				pl.log.LogAttrs(ctx, slog.LevelWarn, "watch error", slog.Any("error", c.Err))
				continue
			}
			if c.Data == nil {
				pl.log.LogAttrs(ctx, slog.LevelInfo, "file removed", slog.Any("change", config.ChangeValue{Change: c}))
				continue
			}
			stop()
			d, err := openAnimation(c.Data, cfg.Decode, *size, log)
			if err != nil {
				pl.log.LogAttrs(ctx, slog.LevelWarn, "failed to load animation", slog.Any("error", err))
				fmt.Fprintf(w, "failed: %v\n", err)
				continue
			}
			pl.log.LogAttrs(ctx, slog.LevelInfo, "loaded animation", slog.Any("change", config.ChangeValue{Change: c}))
			fmt.Fprintf(w, "loaded %s\n", d.Format())
			dec = d
			var pctx context.Context
			pctx, cancel = context.WithCancel(ctx)
			done = make(chan error, 1)
			go func() {
				done <- pl.play(pctx, d)
			}()
		}
	}
}

// player plays animations, sharing its tick count and limit across
// reloads.
type player struct {
	w         io.Writer
	loops     int
	remaining int
	limited   bool
	served    int
	log       *slog.Logger
}

// play animates dec until its loops are played, the tick limit is
// reached or ctx is cancelled.
func (pl *player) play(ctx context.Context, dec *animation.Decoder) error {
	p := animation.NewPlayer(dec)
	d := animation.NewDrawable(p, pl.log)
	d.Loops = pl.loops
	d.OnStart(func() {
		pl.log.LogAttrs(ctx, slog.LevelDebug, "start", slog.String("format", dec.Format()))
	})
	d.OnEnd(func() {
		pl.log.LogAttrs(ctx, slog.LevelDebug, "end", slog.Int("decoded", dec.Len()))
	})
	dst := image.NewRGBA(dec.CanvasSize().Rect())
	d.Start()
	err := d.Animate(ctx, dst, func(img image.Image) error {
		f := p.Current()
		idx := frameIndex(dec, f)
		pl.log.LogAttrs(ctx, slog.LevelInfo, "tick", slog.Int("tick", pl.served), slog.Int("frame", idx), slog.Duration("delay", f.Delay.Duration()))
		fmt.Fprintf(pl.w, "tick %d: frame %d %v\n", pl.served, idx, f.Delay.Duration())
		pl.served++
		if pl.limited {
			pl.remaining--
			if pl.remaining <= 0 {
				return errTicksDone
			}
		}
		return nil
	})
	if ctx.Err() != nil {
		// Interrupted or stopped for a reload.
		return nil
	}
	return err
}

// frameIndex returns the index of f in the frames cached by dec.
func frameIndex(dec *animation.Decoder, f *animation.Frame) int {
	for i := range dec.Len() {
		c, _ := dec.Frame(i)
		if c == f {
			return i
		}
	}
	return -1
}
