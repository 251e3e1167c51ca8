// Package bdsp soft resets Pokémon Brilliant Diamond and Shining Pearl until a
// stationary Pokémon is shiny.
//
// Each cycle closes and relaunches the game, walks into the encounter and times
// the battle entry on the captured video. Shiny Pokémon play an extra sparkle
// animation, so an encounter whose timing matches no known animation is put to
// the operator as a possible shiny.
package bdsp

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/ports"
	"github.com/aretw0/switchbot/pkg/program"
	"github.com/aretw0/switchbot/pkg/statemachine"
	"github.com/aretw0/switchbot/pkg/vision"
)

// Name is the catalog name.
const Name = "BDSP Soft Resetter"

const (
	optionPokemon         = "Pokemon"
	optionSaveScreenshots = "Save screenshots"
	optionScreenshotDir   = "Screenshot directory"
	optionWriteStatistics = "Write statistics"

	screenshotQuality = 50
	dirTimeFormat     = "2006-01-02_15-04-05"
)

// Options are the decoded option values.
type Options struct {
	Pokemon         string `option:"Pokemon"`
	SaveScreenshots bool   `option:"Save screenshots"`
	ScreenshotDir   string `option:"Screenshot directory"`
	WriteStatistics bool   `option:"Write statistics"`
}

// RegionWaiter waits for a colored region to appear on the video feed.
type RegionWaiter func(ctx context.Context, frames ports.FrameSource, rect vision.Rect, cr vision.ColorRange, minimum int, maxWait time.Duration) (time.Duration, bool, error)

// Resetter is the soft reset program.
type Resetter struct {
	*program.Base

	outputDir  string
	sleep      func(ctx context.Context, d time.Duration) error
	waitRegion RegionWaiter
	now        func() time.Time
}

// Factory returns a catalog factory whose files go below outputDir.
func Factory(outputDir string) program.Factory {
	return func(logger *slog.Logger) program.Program {
		return New(logger, outputDir)
	}
}

// New creates the program.
func New(logger *slog.Logger, outputDir string) *Resetter {
	if outputDir == "" {
		outputDir = "."
	}
	return &Resetter{
		Base:       program.NewBase(metadata(), logger),
		outputDir:  outputDir,
		sleep:      statemachine.Sleep,
		waitRegion: vision.WaitForColoredRegion,
		now:        time.Now,
	}
}

func metadata() domain.ProgramMetadata {
	return domain.ProgramMetadata{
		Name:        Name,
		Description: "Soft resets in Pokémon Brilliant Diamond and Shining Pearl for stationary Pokémon.",
		Options: []domain.Option{
			domain.SelectionOption{
				OptionBase: domain.OptionBase{
					Name:        optionPokemon,
					Description: "The Pokemon being soft-reset",
				},
				Choices: PresetNames,
			},
			domain.BoolOption{
				OptionBase: domain.OptionBase{
					Name:        optionSaveScreenshots,
					Description: "Whether to save screenshots of each encounter to disk",
				},
			},
			domain.StringOption{
				OptionBase: domain.OptionBase{
					Name: optionScreenshotDir,
					Description: "The directory to save screenshots to. If screenshots are enabled and this is " +
						"left empty, a new directory named after the current date and time is created.",
				},
				Default: ".",
			},
			domain.BoolOption{
				OptionBase: domain.OptionBase{
					Name:        optionWriteStatistics,
					Description: "Whether to write statistics about each encounter to disk.",
				},
			},
		},
	}
}

// Run implements program.Program.
func (r *Resetter) Run(ctx context.Context, bot *switchbot.Bot) error {
	c := &cycle{Resetter: r, bot: bot, times: make(map[Animation]time.Duration)}
	defer c.close()
	return r.NewMachine(c.initialize()).Run(ctx)
}

// cycle is the state shared by the states of one run.
type cycle struct {
	*Resetter
	bot *switchbot.Bot

	opts       Options
	preset     Preset
	encounters int
	times      map[Animation]time.Duration

	encounterTime time.Duration
	stats         *StatisticsWriter
	screenshots   string
}

func (c *cycle) tap(ctx context.Context, button domain.Button, pause time.Duration) error {
	if err := c.bot.Press(ctx, button); err != nil {
		return err
	}
	return c.sleep(ctx, pause)
}

func (c *cycle) wait(ctx context.Context, d time.Duration) error {
	return c.sleep(ctx, d)
}

func (c *cycle) close() {
	if c.stats == nil {
		return
	}
	if err := c.stats.Close(); err != nil {
		c.Logger.Warn("Failed to close statistics", "err", err)
	}
}

func (c *cycle) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.outputDir, dir)
}

func (c *cycle) openStatistics() error {
	path := c.resolve(fmt.Sprintf("bdsp_%s.csv", c.now().Format(dirTimeFormat)))
	stats, err := CreateStatistics(path)
	if err != nil {
		return err
	}
	c.stats = stats
	c.Logger.Info("Writing statistics", "path", path)
	return nil
}

func (c *cycle) openScreenshotDir() error {
	dir := c.opts.ScreenshotDir
	if dir == "" {
		dir = c.now().Format(dirTimeFormat)
	}
	dir = c.resolve(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}
	c.screenshots = dir
	c.Logger.Info("Saving screenshots", "dir", dir)
	return nil
}

func (c *cycle) saveScreenshot(frame image.Image) {
	if c.screenshots == "" || frame == nil {
		return
	}
	path := filepath.Join(c.screenshots, fmt.Sprintf("encounter_%d.jpg", c.encounters))
	f, err := os.Create(path)
	if err != nil {
		c.Logger.Warn("Failed to save screenshot", "err", err)
		return
	}
	defer f.Close()
	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: screenshotQuality}); err != nil {
		c.Logger.Warn("Failed to encode screenshot", "err", err)
	}
}

func (c *cycle) record(battleMenu time.Duration, animation Animation, shiny bool) {
	if c.stats == nil {
		return
	}
	err := c.stats.WriteEncounter(Encounter{
		Number:         c.encounters,
		Timestamp:      c.now(),
		EncounterTime:  c.encounterTime,
		BattleMenuTime: battleMenu,
		Type:           animation,
		Shiny:          shiny,
	})
	if err != nil {
		c.Logger.Warn("Failed to write statistics", "err", err)
	}
}
