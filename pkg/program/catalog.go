package program

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Factory constructs a fresh program instance.
type Factory func(logger *slog.Logger) Program

// LoggerFunc returns the logger a program named name should write to.
type LoggerFunc func(name string) *slog.Logger

// Catalog maps program names to factories. It is the only thing the session
// manager knows about where programs come from.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name. Names are unique.
func (c *Catalog) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("%w: program needs a name and a factory", domain.ErrInvalidProgram)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("%w: program %q is already registered", domain.ErrInvalidProgram, name)
	}
	c.order = append(c.order, name)
	c.factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on error. It is meant for the
// built-in catalog assembled at startup.
func (c *Catalog) MustRegister(name string, factory Factory) {
	if err := c.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Build instantiates every registered program. Programs whose metadata is invalid
// or does not carry the registered name are skipped; the returned error joins the
// reasons while the valid programs are still returned.
func (c *Catalog) Build(loggerFor LoggerFunc) ([]Program, error) {
	c.mu.RLock()
	names := append([]string(nil), c.order...)
	factories := make(map[string]Factory, len(c.factories))
	for k, v := range c.factories {
		factories[k] = v
	}
	c.mu.RUnlock()

	var (
		programs []Program
		errs     []error
	)
	for _, name := range names {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if loggerFor != nil {
			logger = loggerFor(name)
		}

		p := factories[name](logger)
		if p == nil {
			errs = append(errs, fmt.Errorf("program %q: factory returned nil", name))
			continue
		}
		meta := p.Metadata()
		if meta.Name != name {
			errs = append(errs, fmt.Errorf("program %q: metadata names it %q", name, meta.Name))
			continue
		}
		if err := meta.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("program %q: %w", name, err))
			continue
		}
		programs = append(programs, p)
	}
	return programs, errors.Join(errs...)
}
