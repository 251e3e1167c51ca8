// Package vision holds the small image checks programs use to follow the game
// on the captured video.
package vision

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/aretw0/switchbot/pkg/ports"
	"github.com/aretw0/switchbot/pkg/statemachine"
)

// DefaultPollInterval is roughly one frame at 60 Hz.
const DefaultPollInterval = time.Second / 60

// Rect is a region of a frame in pixels.
type Rect struct {
	X, Y, Width, Height int
}

// Area returns the number of pixels in r.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Bounds converts r to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ColorRange is an inclusive per-channel RGB range.
type ColorRange struct {
	Lower, Upper color.RGBA
}

// Contains reports whether c lies inside the range. Alpha is ignored.
func (cr ColorRange) Contains(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return within(uint8(r>>8), cr.Lower.R, cr.Upper.R) &&
		within(uint8(g>>8), cr.Lower.G, cr.Upper.G) &&
		within(uint8(b>>8), cr.Lower.B, cr.Upper.B)
}

func within(v, lo, hi uint8) bool {
	return v >= lo && v <= hi
}

// CountColoredPixels counts the pixels of rect whose color lies in cr.
// The part of rect outside the frame is ignored.
func CountColoredPixels(frame image.Image, rect Rect, cr ColorRange) int {
	if frame == nil {
		return 0
	}
	area := rect.Bounds().Intersect(frame.Bounds())

	count := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if cr.Contains(frame.At(x, y)) {
				count++
			}
		}
	}
	return count
}

// WaitForColoredRegion polls frames until at least minimum pixels of rect are in
// cr, or maxWait elapses. It returns the time waited and whether the region
// appeared. Missing frames count as no match.
func WaitForColoredRegion(ctx context.Context, frames ports.FrameSource, rect Rect, cr ColorRange, minimum int, maxWait time.Duration) (time.Duration, bool, error) {
	if maxWait <= 0 {
		maxWait = time.Nanosecond
	}
	return statemachine.Poll(ctx, DefaultPollInterval, maxWait, func() bool {
		if frames == nil {
			return false
		}
		return CountColoredPixels(frames.ReadFrame(), rect, cr) >= minimum
	})
}
