// Package ws is the client transport: a websocket endpoint carrying JSON
// envelopes, plus a few plain HTTP routes for health, catalog and metrics.
package ws

import (
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/switchbot/internal/logging"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/observability"
	"github.com/aretw0/switchbot/pkg/session"
)

// Sessions is the part of the session manager the transport drives.
type Sessions interface {
	Start(ctx context.Context, name string, values map[string]any) error
	Stop(ctx context.Context) error
	UpdateOptions(ctx context.Context, values map[string]any) error
	Answer(label string) bool
	Reload(ctx context.Context) error
	Programs() []domain.ProgramMetadata
	CurrentProgram() domain.CurrentProgramMessage
	State() string
	WithSnapshot(fn func(session.Snapshot))
}

// SerialPort is the controller link.
type SerialPort interface {
	ListPorts() ([]string, error)
	Connect(name string) error
	Disconnect()
	Port() (string, bool)
	Press(ctx context.Context, button domain.Button) error
	SetJoystick(ctx context.Context, stick domain.Stick, angle, radius float64) error
}

// VideoSource is the capture device.
type VideoSource interface {
	ListCameras() []domain.CameraDescriptor
	Connect(descriptor domain.CameraDescriptor) error
	Disconnect()
	Current() *domain.CameraDescriptor
	ReadFrame() image.Image
}

// LogHistory exposes recent program log lines atomically with live pushes.
type LogHistory interface {
	WithHistory(fn func(lines []string))
}

// Deps are the collaborators a Server dispatches to.
type Deps struct {
	Sessions Sessions
	Serial   SerialPort
	Video    VideoSource
	// History is optional.
	History LogHistory
}

const (
	DefaultClientBuffer = 64
	DefaultPingInterval = 30 * time.Second
	DefaultFrameRate    = 10
	DefaultFrameScale   = 4
)

type handlerFunc func(ctx context.Context, data json.RawMessage) any

// Server accepts websocket clients and answers their requests.
type Server struct {
	Deps

	hub      *Hub
	logger   *slog.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	version  string

	origins       []string
	upgrader      websocket.Upgrader
	clientBuffer  int
	pingInterval  time.Duration
	frameInterval time.Duration
	frameScale    int

	handlers map[string]handlerFunc
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records protocol errors and exposes gatherer on /metrics.
func WithMetrics(metrics *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.gatherer = gatherer
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithAllowedOrigins restricts websocket upgrades. Empty allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithClientBuffer sets the per-client queue length.
func WithClientBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.clientBuffer = n
		}
	}
}

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithFrameRate sets how many video frames per second StreamFrames pushes.
// Zero disables streaming.
func WithFrameRate(fps float64) Option {
	return func(s *Server) {
		if fps <= 0 {
			s.frameInterval = 0
			return
		}
		s.frameInterval = time.Duration(float64(time.Second) / fps)
	}
}

// NewServer creates a server pushing through hub.
func NewServer(hub *Hub, deps Deps, opts ...Option) *Server {
	s := &Server{
		Deps:          deps,
		hub:           hub,
		logger:        logging.NewNop(),
		version:       "dev",
		clientBuffer:  DefaultClientBuffer,
		pingInterval:  DefaultPingInterval,
		frameInterval: time.Second / DefaultFrameRate,
		frameScale:    DefaultFrameScale,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.handlers = s.routes()
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, r.Header.Get("Origin"))
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/ws", s.ServeWS)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, map[string]string{"status": "ok"})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, map[string]any{
			"version": s.version,
			"clients": s.hub.Count(),
			"state":   s.Sessions.State(),
			"program": s.Sessions.CurrentProgram(),
		})
	})
	r.Get("/programs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, s.Sessions.Programs())
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	c := newClient(conn, s.clientBuffer)
	if !s.welcome(c) {
		conn.Close()
		return
	}
	s.logger.Info("Client connected", "client", c.id, "remote", r.RemoteAddr)

	go c.writePump(s.pingInterval)
	s.readPump(r.Context(), c)

	s.hub.unregister(c)
	s.logger.Info("Client disconnected", "client", c.id)
}

func (s *Server) readPump(ctx context.Context, c *Client) {
	pongWait := 2 * s.pingInterval
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket read failed", "client", c.id, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(ctx, c, raw)
	}
}

// welcome registers c with a full picture of the server. The snapshot, the log
// history and the registration happen under the manager, log and hub locks, so
// the client sees every later update exactly once and after the welcome. The
// pending dialog is taken from the hub, which pushes dialogs under its own lock.
func (s *Server) welcome(c *Client) bool {
	serials := s.availableSerials()
	currentSerial := s.currentSerial()
	currentVideo := s.Video.Current()
	cameras := s.Video.ListCameras()

	var registered bool
	s.Sessions.WithSnapshot(func(snap session.Snapshot) {
		s.withHistory(func(lines []string) {
			registered = s.hub.register(c, func(shown *domain.Dialog) []byte {
				msg := domain.WelcomeMessage{
					AvailablePrograms: snap.Programs,
					RecentProgramLogs: append([]string{}, lines...),
					CurrentVideo:      currentVideo,
					AvailableVideo:    cameras,
					CurrentSerial:     currentSerial,
					AvailableSerial:   serials,
				}
				if snap.Running {
					name := snap.ProgramName
					msg.CurrentProgramName = &name
					msg.CurrentProgramOptions = snap.OptionValues
					msg.CurrentDialog = shown
				}
				data, err := encode(domain.EventWelcome, "", msg)
				if err != nil {
					s.logger.Error("Failed to encode welcome", "err", err)
					return nil
				}
				return data
			})
		})
	})
	return registered
}

func (s *Server) withHistory(fn func([]string)) {
	if s.History == nil {
		fn(nil)
		return
	}
	s.History.WithHistory(fn)
}
