package statemachine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// State is one step of a program. Execute performs the step (it may wait on timers,
// poll the video feed or ask the operator) and returns the successor, or nil when
// the program is done.
type State interface {
	Execute(ctx context.Context) (State, error)
}

// StateFunc adapts a function to the State interface.
type StateFunc func(ctx context.Context) (State, error)

// Execute calls f.
func (f StateFunc) Execute(ctx context.Context) (State, error) {
	return f(ctx)
}

// Hooks are advisory callbacks for observability. They never affect execution.
type Hooks struct {
	OnStateEnter func(ctx context.Context, state string)
	OnStateLeave func(ctx context.Context, state, next string)
}

// Machine drives a chain of states. Only the current state is retained, so programs
// can revisit states indefinitely without growing memory.
type Machine struct {
	state  State
	steps  uint64
	hooks  Hooks
	logger *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition logs.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks Hooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// New creates a machine positioned at initial.
func New(initial State, opts ...Option) *Machine {
	m := &Machine{
		state:  initial,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the state that will execute next.
func (m *Machine) Current() State {
	return m.state
}

// Steps returns how many transitions have happened.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// Run executes states until one returns no successor.
// Cancellation is checked before every state, so no state starts once ctx is done.
// A state error stops the machine and is returned to the caller unrecovered.
func (m *Machine) Run(ctx context.Context) error {
	if m.state == nil {
		return nil
	}
	m.logger.Info("State machine starting.", "state", Name(m.state))

	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info("State machine cancelled.", "state", Name(m.state))
			return err
		}

		name := Name(m.state)
		if m.hooks.OnStateEnter != nil {
			m.hooks.OnStateEnter(ctx, name)
		}

		next, err := m.state.Execute(ctx)
		if err != nil {
			return fmt.Errorf("state %s: %w", name, err)
		}

		nextName := ""
		if next != nil {
			nextName = Name(next)
		}
		if m.hooks.OnStateLeave != nil {
			m.hooks.OnStateLeave(ctx, name, nextName)
		}

		if next == nil {
			m.logger.Info("State machine stopped.", "state", name, "steps", m.steps)
			return nil
		}

		m.state = next
		m.steps++
		m.logger.Debug("Changed to new state", "state", nextName)
	}
}

// Name returns a readable name for a state: its String method if it has one,
// otherwise its type name without package or pointer.
func Name(s State) string {
	if s == nil {
		return "<nil>"
	}
	if named, ok := s.(fmt.Stringer); ok {
		return named.String()
	}
	name := fmt.Sprintf("%T", s)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
