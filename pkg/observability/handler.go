package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/ports"
)

// ProgramKey is the attribute that names the program a record belongs to.
const ProgramKey = "program"

const lineTimeFormat = "2006-01-02 15:04:05,000"

// sink is shared by a handler and every handler derived from it, so lines are
// buffered and pushed in one total order.
type sink struct {
	mu          sync.Mutex
	buffer      *LogBuffer
	broadcaster ports.Broadcaster
}

// BroadcastHandler is a slog.Handler that turns records into log lines of the form
//
//	2024-05-01 10:00:00,000 - Test Program - INFO - Pressing A count=3
//
// appends them to a LogBuffer and pushes them as log_line events.
type BroadcastHandler struct {
	sink   *sink
	level  slog.Leveler
	name   string
	attrs  []string
	prefix string
}

// NewBroadcastHandler creates a handler writing to buffer and broadcaster.
// A nil broadcaster only buffers.
func NewBroadcastHandler(buffer *LogBuffer, broadcaster ports.Broadcaster, level slog.Leveler) *BroadcastHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &BroadcastHandler{
		sink:  &sink{buffer: buffer, broadcaster: broadcaster},
		level: level,
		name:  "switchbot",
	}
}

// Enabled implements slog.Handler.
func (h *BroadcastHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BroadcastHandler) Handle(_ context.Context, r slog.Record) error {
	name := h.name
	attrs := append([]string(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ProgramKey && h.prefix == "" {
			name = a.Value.String()
			return true
		}
		attrs = appendAttr(attrs, h.prefix, a)
		return true
	})

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	line := fmt.Sprintf("%s - %s - %s - %s", t.Format(lineTimeFormat), name, r.Level.String(), r.Message)
	if len(attrs) > 0 {
		line += " " + strings.Join(attrs, " ")
	}

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if h.sink.buffer != nil {
		h.sink.buffer.Append(line)
	}
	if h.sink.broadcaster != nil {
		h.sink.broadcaster.Broadcast(domain.EventLogLine, line)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]string(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == ProgramKey && h.prefix == "" {
			clone.name = a.Value.String()
			continue
		}
		clone.attrs = appendAttr(clone.attrs, h.prefix, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendAttr(dst []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, p, ga)
		}
		return dst
	}
	return append(dst, fmt.Sprintf("%s%s=%s", prefix, a.Key, a.Value.String()))
}

// FanoutHandler sends every record to all of its handlers.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler tees records to handlers.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

// Enabled implements slog.Handler.
func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler.
func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs implements slog.Handler.
func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: out}
}

// WithGroup implements slog.Handler.
func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		out[i] = h.WithGroup(name)
	}
	return &FanoutHandler{handlers: out}
}

// WithHistory calls fn with the buffered lines while no new line can be pushed.
// A client registered inside fn therefore sees each line exactly once, either in
// the history or as a live push.
func (h *BroadcastHandler) WithHistory(fn func(lines []string)) {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	var lines []string
	if h.sink.buffer != nil {
		lines = h.sink.buffer.Lines()
	}
	fn(lines)
}
