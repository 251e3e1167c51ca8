// Package testprogram is a minimal program for checking a setup end to end.
package testprogram

import (
	"context"
	"log/slog"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/program"
)

// Name is the catalog name.
const Name = "Test Program"

// MessageCount is how many numbered lines Run logs after the dialog.
const MessageCount = 10

// Options are the decoded option values.
type Options struct {
	Text string `option:"A String option"`
}

// TestProgram greets, asks one question and logs a few lines.
type TestProgram struct {
	*program.Base
}

// New is the catalog factory.
func New(logger *slog.Logger) program.Program {
	return &TestProgram{
		Base: program.NewBase(domain.ProgramMetadata{
			Name:        Name,
			Description: "Test program, only used for testing",
			Options: []domain.Option{
				domain.StringOption{
					OptionBase: domain.OptionBase{
						Name:                 "A String option",
						Description:          "Example option",
						AllowChangeAtRuntime: true,
					},
					Default: "Test",
				},
			},
		}, logger),
	}
}

// Run implements program.Program.
func (p *TestProgram) Run(ctx context.Context, bot *switchbot.Bot) error {
	p.Logger.Info("Hello from " + Name + "!")

	result, err := p.Ask(ctx, bot, domain.NewDialog("Test dialog", "Press OK to close this dialog.", "OK"))
	if err != nil {
		return err
	}
	p.Logger.Info("Finished waiting for dialog", "result", result)

	var opts Options
	if err := p.DecodeOptions(&opts); err != nil {
		return err
	}
	for i := 0; i < MessageCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Logger.Info("Test message", "n", i, "option", opts.Text)
	}
	return nil
}
