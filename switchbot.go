package switchbot

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/ports"
	"github.com/aretw0/switchbot/pkg/statemachine"
)

// Version is the release of the switchbot server.
var Version = "0.3.0"

// DefaultHoldInterval is the gap between the repeated presses of Hold.
const DefaultHoldInterval = 50 * time.Millisecond

// Bot bundles the process-wide peripherals a running program drives.
// Only one program uses it at a time; the session manager enforces that.
type Bot struct {
	// Controller sends button presses and stick movements to the console.
	Controller ports.Controller

	// Frames yields the latest captured video frame.
	Frames ports.FrameSource

	// Display presents operator dialogs on every connected client.
	Display ports.DialogPresenter
}

func (b *Bot) controller() (ports.Controller, error) {
	if b == nil || b.Controller == nil {
		return nil, fmt.Errorf("no controller attached: %w", domain.ErrPeripheral)
	}
	return b.Controller, nil
}

// Press sends one button press.
func (b *Bot) Press(ctx context.Context, button domain.Button) error {
	c, err := b.controller()
	if err != nil {
		return err
	}
	return c.Press(ctx, button)
}

// Tap presses button and then waits for pause, so the game can react.
func (b *Bot) Tap(ctx context.Context, button domain.Button, pause time.Duration) error {
	if err := b.Press(ctx, button); err != nil {
		return err
	}
	return statemachine.Sleep(ctx, pause)
}

// Hold keeps pressing button for d. The firmware only knows single presses, so a
// hold is a train of presses DefaultHoldInterval apart.
func (b *Bot) Hold(ctx context.Context, button domain.Button, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		if err := b.Press(ctx, button); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		if err := statemachine.Sleep(ctx, DefaultHoldInterval); err != nil {
			return err
		}
	}
}

// Move sets stick to a polar position.
func (b *Bot) Move(ctx context.Context, stick domain.Stick, angle, radius float64) error {
	c, err := b.controller()
	if err != nil {
		return err
	}
	return c.SetJoystick(ctx, stick, angle, radius)
}

// Frame returns the latest video frame, or nil when none is available.
func (b *Bot) Frame() image.Image {
	if b == nil || b.Frames == nil {
		return nil
	}
	return b.Frames.ReadFrame()
}
