package switchbot

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchbot/pkg/domain"
)

type countingController struct {
	mu      sync.Mutex
	presses []domain.Button
	sticks  int
}

func (c *countingController) Press(_ context.Context, b domain.Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presses = append(c.presses, b)
	return nil
}

func (c *countingController) SetJoystick(context.Context, domain.Stick, float64, float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sticks++
	return nil
}

type staticFrames struct{ img image.Image }

func (s staticFrames) ReadFrame() image.Image { return s.img }

func TestBot_WithoutController(t *testing.T) {
	bot := &Bot{}
	err := bot.Press(context.Background(), domain.ButtonA)
	assert.ErrorIs(t, err, domain.ErrPeripheral)
	assert.ErrorIs(t, bot.Move(context.Background(), domain.StickLeft, 0, 1), domain.ErrPeripheral)
	assert.Nil(t, bot.Frame())

	var nilBot *Bot
	assert.Nil(t, nilBot.Frame())
}

func TestBot_TapAndHold(t *testing.T) {
	ctrl := &countingController{}
	bot := &Bot{Controller: ctrl}

	require.NoError(t, bot.Tap(context.Background(), domain.ButtonA, time.Millisecond))
	require.NoError(t, bot.Hold(context.Background(), domain.ButtonUp, 120*time.Millisecond))
	require.NoError(t, bot.Move(context.Background(), domain.StickRight, 0, 0))

	assert.Equal(t, domain.ButtonA, ctrl.presses[0])
	assert.GreaterOrEqual(t, len(ctrl.presses), 3)
	assert.Equal(t, 1, ctrl.sticks)
}

func TestBot_HoldStopsOnCancel(t *testing.T) {
	bot := &Bot{Controller: &countingController{}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bot.Hold(ctx, domain.ButtonB, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBot_Frame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	bot := &Bot{Frames: staticFrames{img: img}}
	assert.Same(t, img, bot.Frame())
}
