package ws

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"time"

	"github.com/aretw0/switchbot/pkg/domain"
)

const frameQuality = 70

// StreamFrames pushes downscaled JPEG frames as video_frame events while a
// camera is connected and at least one client listens. It blocks until ctx is
// done and returns immediately when streaming is disabled.
func (s *Server) StreamFrames(ctx context.Context) {
	if s.frameInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.hub.Count() == 0 || s.Video.Current() == nil {
			continue
		}
		frame := s.Video.ReadFrame()
		if frame == nil {
			continue
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, Downscale(frame, s.frameScale), &jpeg.Options{Quality: frameQuality}); err != nil {
			s.logger.Debug("Failed to encode frame", "err", err)
			continue
		}
		s.hub.Broadcast(domain.EventVideoFrame, VideoFrameMessage{
			Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
		})
	}
}

// Downscale shrinks img by an integer factor using nearest-neighbour sampling.
func Downscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx()/factor, b.Dy()/factor
	if w == 0 || h == 0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(x, y, img.At(b.Min.X+x*factor, b.Min.Y+y*factor))
		}
	}
	return dst
}
