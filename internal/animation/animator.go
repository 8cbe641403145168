// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// DefaultDelay is the real time delay used for frames that declare a
// zero display time.
const DefaultDelay = 100 * time.Millisecond

// Drawable is an Animator that plays frames from a Player in real time.
// A stopped Drawable holds its current frame until it is started again.
//
// Start, Stop and Running are safe to call concurrently with Animate.
type Drawable struct {
	player *Player
	log    *slog.Logger

	// Loops is the number of times the animation is played
	// before Animate returns. If Loops is zero the loop count
	// of the animation is used. A negative Loops plays forever.
	Loops int

	mu       sync.Mutex
	starting bool
	running  bool
	onStart  []func()
	onEnd    []func()
	last     image.Image

	wake chan struct{}
}

// NewDrawable returns a stopped Drawable for p. If log is nil, logging is
// discarded.
func NewDrawable(p *Player, log *slog.Logger) *Drawable {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Drawable{
		player: p,
		log:    log,
		wake:   make(chan struct{}, 1),
	}
}

// Start starts the animation from its first frame if it is not running.
func (d *Drawable) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.starting = true
	d.running = true
	d.signal()
}

// Stop stops the animation, holding the current frame.
func (d *Drawable) Stop() {
	d.mu.Lock()
	d.running = false
	d.signal()
	callbacks := d.onEnd
	d.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func (d *Drawable) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Running returns whether the animation is running.
func (d *Drawable) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// OnStart registers fn to be called each time the animation starts.
func (d *Drawable) OnStart(fn func()) {
	d.mu.Lock()
	d.onStart = append(d.onStart, fn)
	d.mu.Unlock()
}

// OnEnd registers fn to be called each time the animation stops.
func (d *Drawable) OnEnd(fn func()) {
	d.mu.Lock()
	d.onEnd = append(d.onEnd, fn)
	d.mu.Unlock()
}

// Animate renders frames into dst and calls fn on each rendered frame.
// While the Drawable is running, frames advance after their delay. While
// it is stopped, the current frame is held until Start is called. Animate
// returns nil when the animation has played its loops, the error from a
// frame that cannot be served, the error returned by fn or the context's
// error.
func (d *Drawable) Animate(ctx context.Context, dst draw.Image, fn func(image.Image) error) error {
	limit := d.Loops
	if limit == 0 {
		limit = d.player.Decoder().LoopCount()
	}
	buf := make([]byte, d.player.Decoder().CanvasSize().Bytes())
	var plays int
	for {
		d.mu.Lock()
		policy := Hold
		var started []func()
		switch {
		case d.starting:
			policy = Reset
			d.starting = false
			plays = 0
			started = d.onStart
		case d.running:
			policy = Advance
		}
		d.mu.Unlock()
		for _, cb := range started {
			cb()
		}

		delay, err := d.tick(&buf, policy)
		if err != nil {
			d.log.LogAttrs(ctx, slog.LevelDebug, "failed to decode frame", slog.Any("error", err))
			d.Stop()
			return err
		}
		d.render(dst, buf)
		err = fn(dst)
		if err != nil {
			return err
		}

		if policy == Advance && d.wrapped() {
			plays++
			d.log.LogAttrs(ctx, slog.LevelDebug, "loop complete", slog.Int("plays", plays), slog.Int("limit", limit))
			if limit > 0 && plays >= limit {
				d.Stop()
				return nil
			}
		}

		if !d.Running() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.wake:
			}
			continue
		}
		wait := time.Duration(delay) * time.Millisecond
		if wait <= 0 {
			wait = DefaultDelay
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-d.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// wrapped returns whether the last advance served the final frame of
// the animation. If the play index has moved past the decoded frames,
// the next frame is decoded early to find out whether the animation
// has ended.
func (d *Drawable) wrapped() bool {
	dec := d.player.Decoder()
	idx := d.player.Index()
	if !dec.Complete() && idx == dec.Len() {
		// Errors are sticky and will be seen
		// by the next tick.
		dec.Ensure(idx)
	}
	return dec.Complete() && dec.Len() != 0 && idx%dec.Len() == 0
}

// tick serves a frame into *buf, growing it if it is too small.
func (d *Drawable) tick(buf *[]byte, policy Policy) (int, error) {
	delay, err := d.player.Tick(*buf, policy)
	var short *BufferTooSmallError
	if errors.As(err, &short) {
		*buf = make([]byte, short.Need)
		// A Reset has already been applied.
		if policy == Reset {
			policy = Hold
		}
		delay, err = d.player.Tick(*buf, policy)
	}
	return delay, err
}

// render draws the most recently served frame held in buf into dst.
func (d *Drawable) render(dst draw.Image, buf []byte) {
	f := d.player.Current()
	size := f.Size()
	src := &image.RGBA{
		Pix:    buf[:size.Bytes()],
		Stride: size.Width * 4,
		Rect:   size.Rect(),
	}
	r := src.Rect.Add(f.Offset).Add(dst.Bounds().Min)
	draw.Draw(dst, r, src, image.Point{}, draw.Src)
	d.mu.Lock()
	d.last = dst
	d.mu.Unlock()
}

func (d *Drawable) current() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// ColorModel implements the image.Image interface.
func (d *Drawable) ColorModel() color.Model {
	if img := d.current(); img != nil {
		return img.ColorModel()
	}
	return color.RGBAModel
}

// Bounds implements the image.Image interface. Before a frame has been
// rendered, the bounds are those of the canvas.
func (d *Drawable) Bounds() image.Rectangle {
	if img := d.current(); img != nil {
		return img.Bounds()
	}
	return d.player.Decoder().CanvasSize().Rect()
}

// At implements the image.Image interface.
func (d *Drawable) At(x, y int) color.Color {
	if img := d.current(); img != nil {
		return img.At(x, y)
	}
	return color.RGBA{}
}
