package bdsp

import (
	"context"
	"time"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Preset describes how to walk into a stationary encounter: optionally step
// forward, press A to trigger the encounter text box, then press A again to
// close it and start the battle animation.
type Preset struct {
	// Steps is how many times Up is tapped before interacting. Zero means the
	// player already faces the Pokémon.
	Steps int
	// PreBattle is how long the encounter text box takes to appear.
	PreBattle time.Duration
	// Animation is how long the battle entry animation takes.
	Animation time.Duration
}

const (
	stepPause   = 500 * time.Millisecond
	settlePause = 1500 * time.Millisecond
)

func simple(pre, animation float64) Preset {
	return Preset{PreBattle: seconds(pre), Animation: seconds(animation)}
}

func stepForward(steps int, pre, animation float64) Preset {
	return Preset{Steps: steps, PreBattle: seconds(pre), Animation: seconds(animation)}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// PresetNames lists the supported Pokémon in menu order.
var PresetNames = []string{
	"Registeel", "Regirock", "Regice", "Darkrai",
	"Palkia", "Dialga", "Giratina", "Heatran",
}

// Presets maps each supported Pokémon to its entry timings.
var Presets = map[string]Preset{
	"Registeel": simple(4, 7),
	"Regirock":  simple(4, 7),
	"Regice":    simple(4, 7),
	"Darkrai":   simple(7, 7),
	"Palkia":    stepForward(1, 3, 7),
	"Dialga":    stepForward(1, 3, 7),
	"Giratina":  simple(4, 7),
	"Heatran":   simple(4, 10),
}

// tapper presses a button and then waits.
type tapper interface {
	tap(ctx context.Context, button domain.Button, pause time.Duration) error
	wait(ctx context.Context, d time.Duration) error
}

// enter plays the preset until the battle animation is running.
func (p Preset) enter(ctx context.Context, t tapper) error {
	if p.Steps > 0 {
		for i := 0; i < p.Steps; i++ {
			if err := t.tap(ctx, domain.ButtonUp, stepPause); err != nil {
				return err
			}
		}
		if err := t.wait(ctx, settlePause); err != nil {
			return err
		}
	}
	if err := t.tap(ctx, domain.ButtonA, p.PreBattle); err != nil {
		return err
	}
	return t.tap(ctx, domain.ButtonA, p.Animation)
}
