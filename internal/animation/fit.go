// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

// FitSize returns the target size for an animation of size src requested
// at width by height pixels and whether the target should be applied.
// A non-positive width or height is unspecified; when only one is given
// the other is chosen to keep the aspect ratio of src. When neither is
// given, the source size is kept. If allowInexact is true the target is
// only applied when it shrinks the animation.
func FitSize(src Size, width, height int, allowInexact bool) (Size, bool) {
	if !src.Valid() {
		return src, false
	}
	switch {
	case width > 0 && height > 0:
		if allowInexact && width >= src.Width && height >= src.Height {
			return src, false
		}
		return Size{Width: width, Height: height}, true
	case width > 0:
		if allowInexact && width >= src.Width {
			return src, false
		}
		return Size{Width: width, Height: width * src.Height / src.Width}, true
	case height > 0:
		if allowInexact && height >= src.Height {
			return src, false
		}
		return Size{Width: height * src.Width / src.Height, Height: height}, true
	default:
		return src, false
	}
}
