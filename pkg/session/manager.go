package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/internal/logging"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/observability"
	"github.com/aretw0/switchbot/pkg/ports"
	"github.com/aretw0/switchbot/pkg/program"
	"github.com/aretw0/switchbot/pkg/statemachine"
)

// Lifecycle states and events.
const (
	StateIdle    = "idle"
	StateRunning = "running"

	eventStart  = "start"
	eventStop   = "stop"
	eventFinish = "finish"
)

const (
	// DefaultDisplaceTimeout bounds how long Start waits for a displaced program to unwind.
	DefaultDisplaceTimeout = 2 * time.Second

	// DefaultLeaseTTL is the expiry of the console lease; it is refreshed while held.
	DefaultLeaseTTL = 30 * time.Second

	defaultLeaseKey  = "switchbot:console"
	defaultLeaseWait = 500 * time.Millisecond
	releaseTimeout   = 2 * time.Second
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("session manager is closed")

// Source builds fresh program instances. program.Catalog implements it.
type Source interface {
	Build(loggerFor program.LoggerFunc) ([]program.Program, error)
}

// Session is the currently running program.
type Session struct {
	Program    program.Program
	Generation uint64
	StartedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{}
	unlock ports.UnlockFunc
}

// Name returns the name of the running program.
func (s *Session) Name() string {
	return s.Program.Metadata().Name
}

// Manager serializes Start, Stop, UpdateOptions and Answer behind one mutex.
// Start lets go of it while a displaced program unwinds.
type Manager struct {
	mu        sync.Mutex
	startMu   sync.Mutex
	source    Source
	programs  []program.Program
	lifecycle *fsm.FSM
	current   *Session
	gen       uint64
	closed    bool

	bot         *switchbot.Bot
	broadcaster ports.Broadcaster

	locker    ports.DistributedLocker
	leaseKey  string
	leaseTTL  time.Duration
	leaseWait time.Duration

	displaceTimeout time.Duration
	logger          *slog.Logger
	loggerFor       program.LoggerFunc
	metrics         *observability.Metrics

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithProgramLogger sets how per-program loggers are created.
// By default programs log through the manager's logger.
func WithProgramLogger(fn program.LoggerFunc) Option {
	return func(m *Manager) {
		m.loggerFor = fn
	}
}

// WithBroadcaster sets where current_program updates are pushed.
func WithBroadcaster(b ports.Broadcaster) Option {
	return func(m *Manager) {
		m.broadcaster = b
	}
}

// WithLocker enables the console lease under key.
func WithLocker(locker ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if key != "" {
			m.leaseKey = key
		}
		if ttl > 0 {
			m.leaseTTL = ttl
		}
	}
}

// WithLeaseWait bounds how long Start waits for the console lease.
func WithLeaseWait(d time.Duration) Option {
	return func(m *Manager) {
		m.leaseWait = d
	}
}

// WithMetrics records lifecycle metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithDisplaceTimeout bounds how long Start waits for a displaced program.
func WithDisplaceTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.displaceTimeout = d
	}
}

// NewManager creates an idle manager and loads the programs from source.
// Programs the source rejects are logged and left out.
func NewManager(source Source, bot *switchbot.Bot, opts ...Option) (*Manager, error) {
	if source == nil {
		return nil, fmt.Errorf("session manager needs a program source")
	}
	if bot == nil {
		bot = &switchbot.Bot{}
	}

	m := &Manager{
		source:          source,
		bot:             bot,
		leaseKey:        defaultLeaseKey,
		leaseTTL:        DefaultLeaseTTL,
		leaseWait:       defaultLeaseWait,
		displaceTimeout: DefaultDisplaceTimeout,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loggerFor == nil {
		m.loggerFor = func(name string) *slog.Logger {
			return m.logger.With("program", name)
		}
	}

	m.baseCtx, m.cancelBase = context.WithCancel(context.Background())
	m.lifecycle = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateRunning},
			{Name: eventStop, Src: []string{StateRunning}, Dst: StateIdle},
			{Name: eventFinish, Src: []string{StateRunning}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Debug("Lifecycle changed", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)

	if err := m.Reload(context.Background()); err != nil {
		m.logger.Warn("Some programs failed to load", "err", err)
	}
	return m, nil
}

// Reload rebuilds the program catalog. A running session keeps its instance and
// keeps running; later starts use the new instances.
func (m *Manager) Reload(ctx context.Context) error {
	programs, err := m.source.Build(m.loggerFor)
	for _, p := range programs {
		m.instrument(p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.programs = programs
	m.logger.Info("Loaded programs", "count", len(programs))
	return err
}

func (m *Manager) instrument(p program.Program) {
	inst, ok := p.(program.Instrumented)
	if !ok || m.metrics == nil {
		return
	}
	name := p.Metadata().Name
	inst.SetStateHooks(statemachine.Hooks{
		OnStateEnter: func(_ context.Context, state string) {
			m.metrics.StateEntered(name, state)
		},
	})
}

// Programs returns the metadata of every loaded program in catalog order.
func (m *Manager) Programs() []domain.ProgramMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadataLocked()
}

func (m *Manager) metadataLocked() []domain.ProgramMetadata {
	out := make([]domain.ProgramMetadata, 0, len(m.programs))
	for _, p := range m.programs {
		out = append(out, p.Metadata())
	}
	return out
}

func (m *Manager) findLocked(name string) program.Program {
	for _, p := range m.programs {
		if p.Metadata().Name == name {
			return p
		}
	}
	return nil
}

// State returns the lifecycle state, StateIdle or StateRunning.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifecycle.Current()
}

// Start runs the program called name with values, displacing any running program.
// An unknown name or invalid values leave everything unchanged and broadcast nothing.
//
// The displaced program is waited for without holding the manager lock, so
// answers, snapshots and joining clients are not held up while it unwinds.
// Concurrent starts are serialized.
func (m *Manager) Start(ctx context.Context, name string, values map[string]any) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	p := m.findLocked(name)
	if p == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", domain.ErrProgramNotFound, name)
	}
	resolved, err := domain.ValidateOptionValues(p.Metadata().Options, values)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	displaced := m.current
	if displaced != nil {
		m.logger.Info("Displacing running program", "program", displaced.Name(), "generation", displaced.Generation)
		m.stopLocked(displaced)
	}
	m.mu.Unlock()

	if displaced != nil {
		m.awaitDisplaced(ctx, displaced)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		if displaced != nil {
			m.broadcastLocked()
		}
		return ErrClosed
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		leaseCtx, cancel := context.WithTimeout(ctx, m.leaseWait)
		unlock, err = m.locker.Lock(leaseCtx, m.leaseKey, m.leaseTTL)
		cancel()
		if err != nil {
			if displaced != nil {
				m.broadcastLocked()
			}
			return fmt.Errorf("%w: %v", domain.ErrConsoleBusy, err)
		}
	}

	p.OnOptionsUpdated(resolved)

	m.gen++
	runCtx, cancel := context.WithCancel(m.baseCtx)
	s := &Session{
		Program:    p,
		Generation: m.gen,
		StartedAt:  time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
		unlock:     unlock,
	}
	m.current = s
	m.fireLocked(eventStart)
	m.metrics.ProgramStarted(name)

	m.wg.Add(1)
	go m.run(runCtx, s)

	m.logger.Info("Started program", "program", name, "generation", s.Generation)
	m.broadcastLocked()
	return nil
}

// awaitDisplaced waits a bounded time for a stopped session's goroutine to unwind.
func (m *Manager) awaitDisplaced(ctx context.Context, s *Session) {
	timer := time.NewTimer(m.displaceTimeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		m.logger.Warn("Displaced program did not stop in time", "program", s.Name(), "timeout", m.displaceTimeout)
	case <-ctx.Done():
	}
}

// stopLocked cancels s, wakes a pending dialog and clears the session.
func (m *Manager) stopLocked(s *Session) {
	s.cancel()
	s.Program.AbandonDialog()
	m.clearLocked(eventStop)
	m.metrics.ProgramEnded(s.Name(), observability.OutcomeStopped)
}

// Stop cancels the running program and clears the session immediately.
// It is a no-op, broadcasting nothing, when nothing is running.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lifecycle.Can(eventStop) {
		return nil
	}
	s := m.current
	m.logger.Info("Stopping program", "program", s.Name(), "generation", s.Generation)
	m.stopLocked(s)
	m.broadcastLocked()
	return nil
}

// UpdateOptions changes option values of the running program. Only options that
// allow runtime changes may be given; the rest keep their values.
func (m *Manager) UpdateOptions(ctx context.Context, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return domain.ErrNotRunning
	}

	options := s.Program.Metadata().Options
	merged := s.Program.OptionValues()
	for name, raw := range values {
		opt, ok := domain.FindOption(options, name)
		if !ok {
			return fmt.Errorf("%w: unknown option %q", domain.ErrInvalidOption, name)
		}
		if !opt.ChangeableAtRuntime() {
			return fmt.Errorf("%w: option %q cannot change while running", domain.ErrInvalidOption, name)
		}
		v, err := opt.Coerce(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidOption, err)
		}
		merged[name] = v
	}

	s.Program.OnOptionsUpdated(merged)
	m.broadcastLocked()
	return nil
}

// Answer delivers the operator's answer to the running program's pending dialog.
// It reports false when nothing was waiting; such answers are dropped.
func (m *Manager) Answer(label string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		m.logger.Debug("Dropping answer, no program is running", "answer", label)
		return false
	}
	if !s.Program.OnUserInteraction(label) {
		m.logger.Debug("Dropping answer, no dialog is pending", "program", s.Name(), "answer", label)
		return false
	}
	m.metrics.DialogAnswered(s.Name())
	return true
}

// run executes one session and applies its completion if it is still current.
func (m *Manager) run(ctx context.Context, s *Session) {
	defer m.wg.Done()

	err := m.invoke(ctx, s)
	s.cancel()
	close(s.done)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != s {
		m.logger.Debug("Ignoring completion of superseded session", "program", s.Name(), "generation", s.Generation)
		return
	}

	plog := m.loggerFor(s.Name())
	outcome := observability.OutcomeFinished
	switch {
	case err == nil:
		plog.Info("Program finished.")
	case cancelled(ctx, err):
		outcome = observability.OutcomeStopped
		plog.Info("Program cancelled.")
	default:
		outcome = observability.OutcomeFailed
		plog.Error("Program failed.", "err", err)
	}

	m.clearLocked(eventFinish)
	m.metrics.ProgramEnded(s.Name(), outcome)
	m.broadcastLocked()
}

func (m *Manager) invoke(ctx context.Context, s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrRoutineFault, r)
		}
	}()
	if err := s.Program.Run(ctx, m.bot); err != nil {
		if cancelled(ctx, err) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrRoutineFault, err)
	}
	return nil
}

// cancelled reports whether err is the routine giving up because ctx ended.
func cancelled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrDialogCancelled)
}

// clearLocked drops the current session and releases the lease.
func (m *Manager) clearLocked(event string) {
	s := m.current
	if s == nil {
		return
	}
	m.current = nil
	m.fireLocked(event)

	if s.unlock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := s.unlock(ctx); err != nil {
			m.logger.Warn("Failed to release console lease (will expire via TTL)", "err", err)
		}
	}
}

func (m *Manager) fireLocked(event string) {
	if err := m.lifecycle.Event(context.Background(), event); err != nil {
		m.logger.Debug("Lifecycle event ignored", "event", event, "state", m.lifecycle.Current(), "err", err)
	}
}

func (m *Manager) broadcastLocked() {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Broadcast(domain.EventCurrentProgram, m.currentMessageLocked())
}

func (m *Manager) currentMessageLocked() domain.CurrentProgramMessage {
	if m.current == nil {
		return domain.CurrentProgramMessage{}
	}
	meta := m.current.Program.Metadata()
	return domain.CurrentProgramMessage{
		Metadata:      &meta,
		OptionValues:  m.current.Program.OptionValues(),
		CurrentDialog: m.current.Program.CurrentDialog(),
	}
}

// CurrentProgram returns the message describing the running program, with nil
// fields when idle.
func (m *Manager) CurrentProgram() domain.CurrentProgramMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentMessageLocked()
}

// Close stops the running program and waits for its goroutine, up to ctx.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if s := m.current; s != nil {
		m.stopLocked(s)
		m.broadcastLocked()
	}
	m.mu.Unlock()
	m.cancelBase()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for program to stop: %w", ctx.Err())
	}
}
