// Package video manages the capture device that programs read frames from.
package video

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for still-image sources
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/switchbot/internal/logging"
	"github.com/aretw0/switchbot/pkg/domain"
)

// Grabber yields frames from one opened source.
type Grabber interface {
	// Grab returns the next frame. A nil frame with a nil error means none was ready.
	Grab() (image.Image, error)
	Close() error
}

// OpenFunc opens the source a descriptor names.
type OpenFunc func(descriptor domain.CameraDescriptor) (Grabber, error)

// GenericCameraCount is how many numbered cameras ListCameras offers.
const GenericCameraCount = 4

// Connector tracks the active camera. Without a capture backend, numbered cameras
// connect but yield no frames; a descriptor whose identifier is an image file path
// yields that image on every read.
type Connector struct {
	mu      sync.Mutex
	active  *domain.CameraDescriptor
	grabber Grabber
	open    OpenFunc
	logger  *slog.Logger
}

// Option configures the Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithOpener replaces the capture backend.
func WithOpener(open OpenFunc) Option {
	return func(c *Connector) {
		c.open = open
	}
}

// NewConnector creates a disconnected connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		open:   OpenDefault,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCameras returns the generic numbered cameras.
func (c *Connector) ListCameras() []domain.CameraDescriptor {
	cams := make([]domain.CameraDescriptor, GenericCameraCount)
	for i := range cams {
		cams[i] = domain.CameraDescriptor{Name: fmt.Sprintf("Generic camera %d", i), Identifier: i}
	}
	return cams
}

// Connect switches to descriptor, closing the previous source.
func (c *Connector) Connect(descriptor domain.CameraDescriptor) error {
	descriptor.Identifier = normalizeIdentifier(descriptor.Identifier)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnectLocked()
	g, err := c.open(descriptor)
	if err != nil {
		return fmt.Errorf("failed to open camera %q: %w: %w", descriptor.Name, domain.ErrPeripheral, err)
	}
	c.grabber = g
	c.active = &descriptor
	c.logger.Info("Connected to camera", "camera", descriptor.Name, "identifier", descriptor.Identifier)
	return nil
}

// Disconnect releases the source. It is a no-op when not connected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *Connector) disconnectLocked() {
	if c.grabber == nil {
		return
	}
	if err := c.grabber.Close(); err != nil {
		c.logger.Warn("Failed to release camera", "err", err)
	}
	c.logger.Info("Disconnected camera", "camera", c.active.Name)
	c.grabber = nil
	c.active = nil
}

// Current returns the active descriptor, or nil.
func (c *Connector) Current() *domain.CameraDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	d := *c.active
	return &d
}

// ReadFrame returns the latest frame, or nil when not connected or no frame is ready.
// Grab errors are logged and reported as a missing frame.
func (c *Connector) ReadFrame() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.grabber == nil {
		return nil
	}
	frame, err := c.grabber.Grab()
	if err != nil {
		c.logger.Debug("Failed to grab frame", "err", err)
		return nil
	}
	return frame
}

// normalizeIdentifier turns JSON numbers back into camera indices.
func normalizeIdentifier(id any) any {
	if f, ok := id.(float64); ok && f == float64(int(f)) {
		return int(f)
	}
	return id
}

// OpenDefault opens image files as still sources and anything else as a camera
// without a capture backend.
func OpenDefault(descriptor domain.CameraDescriptor) (Grabber, error) {
	if path, ok := descriptor.Identifier.(string); ok && isImagePath(path) {
		return OpenImageFile(path)
	}
	return nullGrabber{}, nil
}

func isImagePath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

type nullGrabber struct{}

func (nullGrabber) Grab() (image.Image, error) { return nil, nil }
func (nullGrabber) Close() error               { return nil }

// StillGrabber serves the same image on every grab.
type StillGrabber struct {
	Image image.Image
}

// Grab returns the still image.
func (s StillGrabber) Grab() (image.Image, error) { return s.Image, nil }

// Close does nothing.
func (s StillGrabber) Close() error { return nil }

// OpenImageFile decodes a PNG or JPEG file into a StillGrabber.
func OpenImageFile(path string) (Grabber, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return StillGrabber{Image: img}, nil
}
