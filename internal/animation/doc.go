// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides lazy animated image decoding and playback.
//
// A [Decoder] pulls raw frames from a [FrameSource] only when they are
// first needed, resizes them to an optional target size, premultiplies
// their color channels and caches the result permanently. A [Player]
// serves frames from a Decoder into a caller owned pixel buffer one tick
// at a time under a [Policy]. Neither type is safe for concurrent use;
// a [Table] provides handle based access for hosts that need it.
package animation

import (
	"context"
	"image"

	"golang.org/x/image/draw"
)

// Animator is an image that can animate frames.
type Animator interface {
	// Animate renders the frames into dst and calls
	// fn on each rendered frame.
	Animate(ctx context.Context, dst draw.Image, fn func(image.Image) error) error
	image.Image
}
