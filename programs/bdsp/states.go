package bdsp

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/statemachine"
	"github.com/aretw0/switchbot/pkg/vision"
)

// Animation classifies a measured battle entry.
type Animation string

const (
	AnimationNormal  Animation = "normal"
	AnimationSpecial Animation = "special"
)

// MaxDiff is how far a measurement may be from a known animation time and
// still count as that animation.
const MaxDiff = 250 * time.Millisecond

var (
	// The encounter text box along the bottom of a 1080p frame.
	encounterRect  = vision.Rect{X: 170, Y: 880, Width: 1580, Height: 160}
	encounterColor = vision.ColorRange{
		Lower: color.RGBA{R: 245, G: 245, B: 245, A: 255},
		Upper: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
	encounterWait = 10 * time.Second

	// The red "Fight" button of the battle menu.
	battleMenuRect  = vision.Rect{X: 1693, Y: 637, Width: 60, Height: 60}
	battleMenuColor = vision.ColorRange{
		Lower: color.RGBA{R: 180, G: 0, B: 0, A: 255},
		Upper: color.RGBA{R: 255, G: 85, B: 85, A: 255},
	}
	battleMenuWait = 100 * time.Second
)

// step is a named state backed by a method of the cycle.
type step struct {
	name string
	fn   func(ctx context.Context) (statemachine.State, error)
}

func (s step) String() string { return s.name }

func (s step) Execute(ctx context.Context) (statemachine.State, error) { return s.fn(ctx) }

func (c *cycle) initialize() statemachine.State { return step{"Initialize", c.doInitialize} }
func (c *cycle) launchGame() statemachine.State { return step{"LaunchGame", c.doLaunchGame} }
func (c *cycle) enterEncounter() statemachine.State { return step{"EnterEncounter", c.doEnterEncounter} }
func (c *cycle) measureTime() statemachine.State { return step{"MeasureTime", c.doMeasureTime} }
func (c *cycle) end() statemachine.State { return step{"End", c.doEnd} }

func (c *cycle) updateTimes(battleMenu time.Duration) statemachine.State {
	return step{"UpdateTimes", func(ctx context.Context) (statemachine.State, error) {
		return c.doUpdateTimes(ctx, battleMenu)
	}}
}

func (c *cycle) doInitialize(context.Context) (statemachine.State, error) {
	c.encounters = 0
	clear(c.times)

	if err := c.DecodeOptions(&c.opts); err != nil {
		return nil, err
	}
	preset, ok := Presets[c.opts.Pokemon]
	if !ok {
		return nil, fmt.Errorf("%w: no preset for %q", domain.ErrInvalidOption, c.opts.Pokemon)
	}
	c.preset = preset

	if c.opts.WriteStatistics {
		if err := c.openStatistics(); err != nil {
			return nil, err
		}
	}
	if c.opts.SaveScreenshots {
		if err := c.openScreenshotDir(); err != nil {
			return nil, err
		}
	}

	c.Logger.Info("Starting soft resetter", "preset", c.opts.Pokemon)
	return c.launchGame(), nil
}

// doLaunchGame closes the running game from the Home menu, relaunches it and
// skips the intro until the player is in the overworld.
func (c *cycle) doLaunchGame(ctx context.Context) (statemachine.State, error) {
	c.encounters++
	c.Logger.Info("Encounter starting", "encounter", c.encounters)

	sequence := []struct {
		button domain.Button
		pause  time.Duration
		what   string
	}{
		{domain.ButtonHome, 500 * time.Millisecond, "Entering home"},
		{domain.ButtonX, 500 * time.Millisecond, "Opening close dialog"},
		{domain.ButtonA, 2 * time.Second, "Confirming close dialog"},
		{domain.ButtonA, 2 * time.Second, "Launching user selection"},
		{domain.ButtonA, 22500 * time.Millisecond, "Selected user"},
		{domain.ButtonA, 5 * time.Second, "Closing intro animation"},
		{domain.ButtonA, 15 * time.Second, "Closing main menu"},
	}
	for _, s := range sequence {
		c.Logger.Debug(s.what)
		if err := c.tap(ctx, s.button, s.pause); err != nil {
			return nil, err
		}
	}
	return c.enterEncounter(), nil
}

func (c *cycle) doEnterEncounter(ctx context.Context) (statemachine.State, error) {
	c.Logger.Info("Entering encounter using chosen preset")
	if err := c.preset.enter(ctx, c); err != nil {
		return nil, err
	}
	c.Logger.Info("Preset should have started battle now, waiting for battle menu")
	return c.measureTime(), nil
}

// doMeasureTime times the battle entry: first until the encounter text box
// shows, then until the battle menu appears.
func (c *cycle) doMeasureTime(ctx context.Context) (statemachine.State, error) {
	frames := c.bot.Frames

	elapsed, found, err := c.waitRegion(ctx, frames, encounterRect, encounterColor, encounterRect.Area()*9/10, encounterWait)
	if err != nil {
		return nil, err
	}
	if !found {
		c.Logger.Info("Timed out waiting for encounter text, skipping this encounter")
		return c.launchGame(), nil
	}
	c.encounterTime = elapsed
	c.Logger.Info(fmt.Sprintf("Found encounter text after %.2f seconds.", elapsed.Seconds()))

	elapsed, found, err = c.waitRegion(ctx, frames, battleMenuRect, battleMenuColor, battleMenuRect.Area()*9/10, battleMenuWait)
	if err != nil {
		return nil, err
	}
	if !found {
		c.Logger.Info("Timed out finding battle menu, skipping encounter")
		return c.launchGame(), nil
	}
	c.Logger.Info(fmt.Sprintf("Found battle menu after another %.2f seconds.", elapsed.Seconds()))

	c.saveScreenshot(c.bot.Frame())
	return c.updateTimes(elapsed), nil
}

func (c *cycle) doUpdateTimes(ctx context.Context, measured time.Duration) (statemachine.State, error) {
	if len(c.times) == 0 {
		return c.firstEncounter(ctx, measured)
	}

	if animation, ok := c.match(measured); ok {
		c.Logger.Info("Encounter matched a known animation", "animation", animation)
		c.record(measured, animation, false)
		return c.launchGame(), nil
	}

	c.Logger.Info("Encounter did not match any known types, might be a shiny.")
	_, haveNormal := c.times[AnimationNormal]
	_, haveSpecial := c.times[AnimationSpecial]
	switch {
	case haveNormal && haveSpecial:
		return c.confirmShiny(ctx, measured)
	case !haveNormal:
		return c.learn(ctx, measured, AnimationNormal, domain.NewDialog(
			"Normal encounter?",
			fmt.Sprintf("Was this a normal (non-long) battle animation?\nLong animation time is %.2f s, this was %.2f s.",
				c.times[AnimationSpecial].Seconds(), measured.Seconds()),
			"Normal", "Shiny", "Ignore",
		))
	default:
		return c.learn(ctx, measured, AnimationSpecial, domain.NewDialog(
			"Long encounter?",
			fmt.Sprintf("Was this a long battle animation?\nNormal animation time is %.2f s, this was %.2f s.",
				c.times[AnimationNormal].Seconds(), measured.Seconds()),
			"Long", "Shiny", "Ignore",
		))
	}
}

func (c *cycle) match(measured time.Duration) (Animation, bool) {
	for _, animation := range []Animation{AnimationNormal, AnimationSpecial} {
		known, ok := c.times[animation]
		if !ok {
			continue
		}
		diff := measured - known
		if diff < 0 {
			diff = -diff
		}
		if diff < MaxDiff {
			return animation, true
		}
	}
	return "", false
}

func (c *cycle) firstEncounter(ctx context.Context, measured time.Duration) (statemachine.State, error) {
	answer, err := c.Ask(ctx, c.bot, domain.NewDialog(
		"Animation type",
		fmt.Sprintf("Encounter took %.2f seconds.\nWas this a normal battle animation?", measured.Seconds()),
		"Normal", "Long", "Shiny",
	))
	if err != nil {
		return nil, err
	}

	switch answer {
	case "Normal":
		c.times[AnimationNormal] = measured
		c.record(measured, AnimationNormal, false)
	case "Long":
		c.times[AnimationSpecial] = measured
		c.record(measured, AnimationSpecial, false)
	default:
		c.record(measured, "", true)
		c.Logger.Info("Encounter was shiny, stopping.")
		return c.end(), nil
	}
	return c.launchGame(), nil
}

// learn asks whether measured is the missing animation.
func (c *cycle) learn(ctx context.Context, measured time.Duration, missing Animation, dialog domain.Dialog) (statemachine.State, error) {
	answer, err := c.Ask(ctx, c.bot, dialog)
	if err != nil {
		return nil, err
	}

	switch answer {
	case "Normal", "Long":
		c.times[missing] = measured
		c.record(measured, missing, false)
		return c.launchGame(), nil
	case "Ignore":
		c.record(measured, "", false)
		return c.launchGame(), nil
	default:
		c.record(measured, "", true)
		return c.end(), nil
	}
}

func (c *cycle) confirmShiny(ctx context.Context, measured time.Duration) (statemachine.State, error) {
	answer, err := c.Ask(ctx, c.bot, domain.NewDialog(
		"Shiny?",
		fmt.Sprintf("Is this a shiny? Yes to stop the program, No to treat this as a false positive and continue.\n"+
			"Encounter time was %.2f s and known times are normal: %.2f s and special: %.2f s with a max diff of %.2f seconds.",
			measured.Seconds(), c.times[AnimationNormal].Seconds(), c.times[AnimationSpecial].Seconds(), MaxDiff.Seconds()),
		"Yes", "No",
	))
	if err != nil {
		return nil, err
	}

	shiny := answer == "Yes"
	c.record(measured, "", shiny)
	if shiny {
		return c.end(), nil
	}
	return c.launchGame(), nil
}

func (c *cycle) doEnd(context.Context) (statemachine.State, error) {
	c.Logger.Info(Name + " stopped.")
	return nil, nil
}
