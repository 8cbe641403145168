// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handle is an opaque reference to an animation held by a Table.
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

// ParseHandle parses the string form of a Handle.
func ParseHandle(s string) (Handle, error) {
	u, err := uuid.Parse(s)
	return Handle(u), err
}

// Table holds open animations referenced by Handle. Each animation is
// serialized independently, so distinct handles may be used concurrently.
type Table struct {
	opts []Option
	log  *slog.Logger

	mu      sync.Mutex
	entries map[Handle]*entry
}

type entry struct {
	mu     sync.Mutex
	player *Player
	closed bool
}

// NewTable returns a new Table that opens animations with the provided
// options.
func NewTable(opts ...Option) *Table {
	return &Table{
		opts:    opts,
		log:     newOptions(opts).log,
		entries: make(map[Handle]*entry),
	}
}

// Info is a summary of the state of an open animation.
type Info struct {
	Format    string `json:"format"`
	Size      Size   `json:"size"`
	Target    *Size  `json:"target,omitempty"`
	Frames    int    `json:"frames"`
	Complete  bool   `json:"complete"`
	LoopCount int    `json:"loop_count"`
	Index     int    `json:"index"`
}

// Open opens the animation in data and returns a handle to it. Options
// are applied after the Table's options.
func (t *Table) Open(data []byte, opts ...Option) (Handle, error) {
	dec, err := Open(data, append(t.opts[:len(t.opts):len(t.opts)], opts...)...)
	if err != nil {
		return Handle{}, err
	}
	h := Handle(uuid.New())
	t.mu.Lock()
	t.entries[h] = &entry{player: NewPlayer(dec)}
	n := len(t.entries)
	t.mu.Unlock()
	t.log.Debug("open", slog.Any("handle", h), slog.String("format", dec.Format()), slog.Int("open", n))
	return h, nil
}

// with calls fn with the player for h while holding its lock.
func (t *Table) with(h Handle, fn func(*Player) error) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	t.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrInvalidHandle
	}
	return fn(e.player)
}

// Configure sets the target size of the animation referenced by h. The
// zero Size clears the target.
func (t *Table) Configure(h Handle, target Size) error {
	return t.with(h, func(p *Player) error {
		p.Decoder().Configure(target)
		return nil
	})
}

// Tick serves a frame of the animation referenced by h into out. See
// [Player.Tick].
func (t *Table) Tick(h Handle, out []byte, policy Policy) (int, error) {
	var delay int
	err := t.with(h, func(p *Player) error {
		var err error
		delay, err = p.Tick(out, policy)
		return err
	})
	return delay, err
}

// Info returns the current state of the animation referenced by h.
func (t *Table) Info(h Handle) (Info, error) {
	var info Info
	err := t.with(h, func(p *Player) error {
		d := p.Decoder()
		info = Info{
			Format:    d.Format(),
			Size:      d.Size(),
			Frames:    d.Len(),
			Complete:  d.Complete(),
			LoopCount: d.LoopCount(),
			Index:     p.Index(),
		}
		if target, ok := d.TargetSize(); ok {
			info.Target = &target
		}
		return nil
	})
	return info, err
}

// Close releases the animation referenced by h. Closing a handle that is
// not open returns ErrInvalidHandle.
func (t *Table) Close(h Handle) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	delete(t.entries, h)
	n := len(t.entries)
	t.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	t.log.Debug("close", slog.Any("handle", h), slog.Int("open", n))
	return e.player.Decoder().Close()
}

// Len returns the number of open handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// With opens the animation in data, calls fn with its handle and closes
// the handle when fn returns, whether or not fn succeeds.
func (t *Table) With(data []byte, fn func(Handle) error, opts ...Option) (err error) {
	h, err := t.Open(data, opts...)
	if err != nil {
		return err
	}
	defer func() {
		cerr := t.Close(h)
		// A handle closed by fn is not an error.
		if errors.Is(cerr, ErrInvalidHandle) {
			cerr = nil
		}
		err = errors.Join(err, cerr)
	}()
	return fn(h)
}
