package ports

import (
	"context"
	"image"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Controller sends discrete commands to the console controller.
type Controller interface {
	Press(ctx context.Context, button domain.Button) error
	SetJoystick(ctx context.Context, stick domain.Stick, angle, radius float64) error
}

// FrameSource yields the latest camera frame, or nil when none is available.
// A nil frame means "try again later", not an error.
type FrameSource interface {
	ReadFrame() image.Image
}
