package vision

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = ColorRange{
	Lower: color.RGBA{R: 245, G: 245, B: 245},
	Upper: color.RGBA{R: 255, G: 255, B: 255},
}

func filled(w, h int, c color.Color, region image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCountColoredPixels(t *testing.T) {
	img := filled(20, 10, color.White, image.Rect(0, 0, 5, 10))

	assert.Equal(t, 50, CountColoredPixels(img, Rect{X: 0, Y: 0, Width: 20, Height: 10}, white))
	assert.Equal(t, 10, CountColoredPixels(img, Rect{X: 4, Y: 0, Width: 10, Height: 10}, white))
	// Partially outside the frame.
	assert.Equal(t, 25, CountColoredPixels(img, Rect{X: -5, Y: 5, Width: 10, Height: 10}, white))
	assert.Zero(t, CountColoredPixels(nil, Rect{Width: 1, Height: 1}, white))
}

func TestRect(t *testing.T) {
	r := Rect{X: 170, Y: 880, Width: 1580, Height: 160}
	assert.Equal(t, 1580*160, r.Area())
	assert.Equal(t, image.Rect(170, 880, 1750, 1040), r.Bounds())
}

type sequence struct {
	frames []image.Image
	reads  atomic.Int32
}

func (s *sequence) ReadFrame() image.Image {
	i := int(s.reads.Add(1)) - 1
	if i >= len(s.frames) {
		return s.frames[len(s.frames)-1]
	}
	return s.frames[i]
}

func TestWaitForColoredRegion(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 4, 4))
	ready := filled(4, 4, color.White, image.Rect(0, 0, 4, 4))
	src := &sequence{frames: []image.Image{nil, blank, ready}}

	rect := Rect{Width: 4, Height: 4}
	waited, ok, err := WaitForColoredRegion(context.Background(), src, rect, white, 14, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, waited, time.Duration(0))
}

func TestWaitForColoredRegion_Timeout(t *testing.T) {
	src := &sequence{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 4, 4))}}

	_, ok, err := WaitForColoredRegion(context.Background(), src, Rect{Width: 4, Height: 4}, white, 1, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaitForColoredRegion_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := WaitForColoredRegion(ctx, nil, Rect{Width: 1, Height: 1}, white, 1, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
