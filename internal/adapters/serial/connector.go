package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	bugserial "go.bug.st/serial"

	"github.com/aretw0/switchbot/internal/logging"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/observability"
)

// OpenFunc opens the named port.
type OpenFunc func(name string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error)

// ListFunc enumerates the available ports.
type ListFunc func() ([]string, error)

// Connector owns the serial link to the controller. Commands are serialized, so
// manual control and a running program can share it.
type Connector struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	name string

	open        OpenFunc
	list        ListFunc
	baudRate    int
	readTimeout time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// Option configures the Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithOpener replaces the function that opens ports.
func WithOpener(open OpenFunc) Option {
	return func(c *Connector) {
		c.open = open
	}
}

// WithLister replaces the function that enumerates ports.
func WithLister(list ListFunc) Option {
	return func(c *Connector) {
		c.list = list
	}
}

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) Option {
	return func(c *Connector) {
		c.baudRate = baud
	}
}

// WithReadTimeout bounds how long a command waits for the reply byte.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Connector) {
		c.readTimeout = d
	}
}

// WithMetrics records command counts and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Connector) {
		c.metrics = m
	}
}

// NewConnector creates a disconnected connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		open:        OpenPort,
		list:        bugserial.GetPortsList,
		baudRate:    9600,
		readTimeout: time.Second,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenPort opens a port with 8 data bits, no parity and one stop bit.
func OpenPort(name string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := bugserial.Open(name, &bugserial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   bugserial.NoParity,
		StopBits: bugserial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

// ListPorts returns the names of the available serial ports.
func (c *Connector) ListPorts() ([]string, error) {
	ports, err := c.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	if ports == nil {
		ports = []string{}
	}
	return ports, nil
}

// Connect opens name, closing any port that is already open.
func (c *Connector) Connect(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(name)
}

func (c *Connector) connectLocked(name string) error {
	c.disconnectLocked()

	port, err := c.open(name, c.baudRate, c.readTimeout)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w: %w", name, domain.ErrPeripheral, err)
	}
	c.port = port
	c.name = name
	c.logger.Info("Connected to port", "port", name)
	return nil
}

// Disconnect closes the port. It is a no-op when not connected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *Connector) disconnectLocked() {
	if c.port == nil {
		return
	}
	c.logger.Info("Disconnecting from port", "port", c.name)
	if err := c.port.Close(); err != nil {
		c.logger.Warn("Failed to close port", "port", c.name, "err", err)
	}
	c.port = nil
	c.name = ""
}

// Reconnect closes and reopens the current port.
func (c *Connector) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return ErrNotConnected
	}
	name := c.name
	c.logger.Info("Reconnecting to port", "port", name)
	return c.connectLocked(name)
}

// Port returns the name of the open port and whether one is open.
func (c *Connector) Port() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.port != nil
}

// Press sends a single button press.
func (c *Connector) Press(ctx context.Context, button domain.Button) error {
	cmd, err := EncodeButton(button)
	if err != nil {
		return err
	}
	return c.send(ctx, "button", cmd)
}

// SetJoystick moves stick to the polar position. A radius of zero recenters it.
func (c *Connector) SetJoystick(ctx context.Context, stick domain.Stick, angle, radius float64) error {
	cmd, err := EncodeJoystick(stick, angle, radius)
	if err != nil {
		return err
	}
	return c.send(ctx, "joystick", cmd)
}

// WriteCommand sends raw command bytes after checking them against the known codes.
func (c *Connector) WriteCommand(ctx context.Context, cmd []byte) error {
	if !IsKnownCommand(cmd) {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	return c.send(ctx, "raw", cmd)
}

func (c *Connector) send(ctx context.Context, kind string, cmd []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := c.roundTrip(cmd)
	c.metrics.CommandSent(kind, time.Since(start).Seconds(), err)
	return err
}

func (c *Connector) roundTrip(cmd []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return ErrNotConnected
	}

	c.logger.Debug("Writing command", "port", c.name, "command", fmt.Sprintf("%q", cmd))
	frame := append(append([]byte(nil), cmd...), '\n')
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("failed to write to %q: %w: %w", c.name, domain.ErrPeripheral, err)
	}

	reply := make([]byte, 1)
	n, err := c.port.Read(reply)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read from %q: %w: %w", c.name, domain.ErrPeripheral, err)
	}
	if n == 0 {
		c.logger.Debug("Unknown response", "port", c.name, "err", errEmptyReply)
		return nil
	}

	switch reply[0] {
	case ReplyOK:
		c.logger.Debug("Response was OK")
		return nil
	case ReplyError:
		return fmt.Errorf("%w: command %q", ErrDeviceError, cmd)
	default:
		c.logger.Debug("Unknown response", "port", c.name, "reply", fmt.Sprintf("%q", reply[0]))
		return nil
	}
}
