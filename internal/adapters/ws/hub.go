package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/switchbot/internal/logging"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/observability"
)

// Hub fans events out to every connected client.
//
// Each client owns a buffered queue. Broadcast never blocks: when a client's
// queue is full a log line or video frame is dropped for that client only, so
// one slow browser cannot stall a running program. Any other event carries
// state the client cannot do without, so the client is disconnected instead
// and gets a fresh welcome when it reconnects. Messages that are delivered keep
// the order in which Broadcast was called.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	dialog  *domain.Dialog
	closed  bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// droppable events may be lost by a slow client without leaving it out of date.
func droppable(event string) bool {
	return event == domain.EventLogLine || event == domain.EventVideoFrame
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHubMetrics records connected clients and dialogs.
func WithHubMetrics(metrics *observability.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = metrics
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Broadcast implements ports.Broadcaster.
func (h *Hub) Broadcast(event string, payload any) {
	msg, err := encode(event, "", payload)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "event", event, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(event, msg)
}

func (h *Hub) broadcastLocked(event string, msg []byte) {
	for c := range h.clients {
		if c.enqueue(msg) {
			continue
		}
		if droppable(event) {
			h.logger.Warn("Client buffer full, dropping message", "client", c.id, "event", event)
			continue
		}
		h.logger.Warn("Client buffer full, disconnecting", "client", c.id, "event", event)
		h.removeLocked(c)
	}
}

// ShowDialog implements ports.DialogPresenter. The dialog is remembered until
// CloseDialog so that clients registering in between are told about it.
func (h *Hub) ShowDialog(_ context.Context, dialog domain.Dialog) error {
	msg, err := encode(domain.EventShowDialog, "", domain.ShowDialogMessage{Dialog: dialog})
	if err != nil {
		return err
	}
	h.metrics.DialogShown()

	h.mu.Lock()
	defer h.mu.Unlock()
	shown := dialog.Clone()
	h.dialog = &shown
	h.broadcastLocked(domain.EventShowDialog, msg)
	return nil
}

// CloseDialog implements ports.DialogPresenter.
func (h *Hub) CloseDialog(answer string) {
	msg, err := encode(domain.EventDialogClosed, "", domain.DialogClosedMessage{Button: answer})
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "event", domain.EventDialogClosed, "err", err)
		return
	}
	h.metrics.DialogClosed()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.dialog = nil
	h.broadcastLocked(domain.EventDialogClosed, msg)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// register adds c and queues its welcome as the first message, atomically with
// respect to Broadcast and the dialog pushes. welcome receives the dialog the
// other clients are currently showing; returning nil aborts the registration.
func (h *Hub) register(c *Client, welcome func(shown *domain.Dialog) []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	var shown *domain.Dialog
	if h.dialog != nil {
		d := h.dialog.Clone()
		shown = &d
	}
	first := welcome(shown)
	if first == nil {
		return false
	}
	h.clients[c] = struct{}{}
	c.enqueue(first)
	h.metrics.ClientConnected()
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.shutdown()
	h.metrics.ClientDisconnected()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.shutdown()
		h.metrics.ClientDisconnected()
	}
}
