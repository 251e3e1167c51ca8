package program

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/statemachine"
)

// Program is the contract every automation routine implements.
type Program interface {
	// Metadata returns the name, description and declared options.
	Metadata() domain.ProgramMetadata

	// Run is the entry point. It builds the routine's context and initial state and
	// drives it with a statemachine.Machine. It must return promptly once ctx is done.
	Run(ctx context.Context, bot *switchbot.Bot) error

	// Ask shows dialog on every client and waits for the operator's answer.
	Ask(ctx context.Context, bot *switchbot.Bot, dialog domain.Dialog) (string, error)

	// OnOptionsUpdated is called whenever option values change, including while running.
	OnOptionsUpdated(values map[string]any)

	// OnUserInteraction delivers an answer from a client to the pending dialog.
	// It reports whether a question was waiting for it.
	OnUserInteraction(answer string) bool

	// OptionValues returns a copy of the current values.
	OptionValues() map[string]any

	// CurrentDialog returns the pending dialog, or nil.
	CurrentDialog() *domain.Dialog

	// AbandonDialog wakes a pending Ask with a cancellation.
	AbandonDialog() bool
}

// Instrumented is implemented by programs that accept state machine hooks.
type Instrumented interface {
	SetStateHooks(hooks statemachine.Hooks)
}

// Base implements everything in Program except Run. Routines embed it.
type Base struct {
	Logger *slog.Logger

	meta     domain.ProgramMetadata
	exchange *Exchange

	mu     sync.RWMutex
	values map[string]any
	hooks  statemachine.Hooks
}

// NewBase creates a Base with the default values of the declared options.
// A nil logger discards output.
func NewBase(meta domain.ProgramMetadata, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Base{
		Logger:   logger,
		meta:     meta,
		exchange: NewExchange(),
		values:   domain.DefaultOptionValues(meta.Options),
	}
}

// Metadata returns the program description.
func (b *Base) Metadata() domain.ProgramMetadata {
	return b.meta
}

// Ask delegates to the program's dialog exchange using the bot's display.
func (b *Base) Ask(ctx context.Context, bot *switchbot.Bot, dialog domain.Dialog) (string, error) {
	if bot == nil {
		return b.exchange.Ask(ctx, nil, dialog)
	}
	return b.exchange.Ask(ctx, bot.Display, dialog)
}

// OnUserInteraction resumes the pending dialog.
func (b *Base) OnUserInteraction(answer string) bool {
	return b.exchange.Answer(answer)
}

// OnOptionsUpdated replaces the stored values wholesale.
func (b *Base) OnOptionsUpdated(values map[string]any) {
	b.mu.Lock()
	b.values = maps.Clone(values)
	if b.values == nil {
		b.values = make(map[string]any)
	}
	b.mu.Unlock()

	b.Logger.Info("Updated option values", "values", values)
}

// OptionValues returns a copy of the current values.
func (b *Base) OptionValues() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.values)
}

// OptionValue returns a single value.
func (b *Base) OptionValue(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// DecodeOptions decodes the current values into out. See Decode.
func (b *Base) DecodeOptions(out any) error {
	return Decode(b.OptionValues(), out)
}

// CurrentDialog returns the pending dialog, or nil.
func (b *Base) CurrentDialog() *domain.Dialog {
	return b.exchange.Current()
}

// AbandonDialog cancels the pending dialog, if any.
func (b *Base) AbandonDialog() bool {
	return b.exchange.Abandon()
}

// SetStateHooks installs hooks for machines created with NewMachine.
func (b *Base) SetStateHooks(hooks statemachine.Hooks) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = hooks
}

// NewMachine creates a state machine wired to the program's logger and hooks.
func (b *Base) NewMachine(initial statemachine.State) *statemachine.Machine {
	b.mu.RLock()
	hooks := b.hooks
	b.mu.RUnlock()

	return statemachine.New(initial,
		statemachine.WithLogger(b.Logger),
		statemachine.WithHooks(hooks),
	)
}
