package serial

import (
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Firmware replies.
const (
	ReplyOK    byte = '.'
	ReplyError byte = '-'
)

var (
	// ErrNotConnected is returned when no port is open.
	ErrNotConnected = fmt.Errorf("serial port is not connected: %w", domain.ErrPeripheral)

	// ErrDeviceError is returned when the firmware rejects a command.
	ErrDeviceError = fmt.Errorf("controller reported an error: %w", domain.ErrPeripheral)

	// ErrUnknownCommand is returned for buttons and stick values the firmware cannot express.
	ErrUnknownCommand = fmt.Errorf("unknown controller command: %w", domain.ErrProtocol)
)

var buttonCodes = map[domain.Button]string{
	domain.ButtonA:       "A",
	domain.ButtonB:       "B",
	domain.ButtonX:       "X",
	domain.ButtonY:       "Y",
	domain.ButtonHome:    "H",
	domain.ButtonMinus:   "M",
	domain.ButtonPlus:    "P",
	domain.ButtonCapture: "C",
	domain.ButtonL:       "L",
	domain.ButtonR:       "R",
	domain.ButtonZL:      "ZL",
	domain.ButtonZR:      "ZR",
	domain.ButtonLeft:    "DL",
	domain.ButtonRight:   "DR",
	domain.ButtonUp:      "DU",
	domain.ButtonDown:    "DD",
}

var stickPrefixes = map[domain.Stick]string{
	domain.StickLeft:  "SL",
	domain.StickRight: "SR",
}

// ButtonCode returns the firmware code of b.
func ButtonCode(b domain.Button) (string, bool) {
	code, ok := buttonCodes[b]
	return code, ok
}

// EncodeButton returns the command bytes for a button press, without terminator.
func EncodeButton(b domain.Button) ([]byte, error) {
	code, ok := buttonCodes[b]
	if !ok {
		return nil, fmt.Errorf("%w: button %q", ErrUnknownCommand, b)
	}
	return []byte(code), nil
}

// PolarToCartesian converts a stick position to the firmware's coordinates, where
// (128, 128) is neutral, x grows to the right and y grows downwards. Angle is in
// radians with zero pointing right; radius is in [0, 1]. 256 is not representable,
// so values are clamped to 255.
func PolarToCartesian(angle, radius float64) (x, y float64) {
	x = 128 + math.Cos(angle)*radius*128
	y = 128 - math.Sin(angle)*radius*128
	return math.Min(x, 255), math.Min(y, 255)
}

// EncodeJoystick returns the command bytes that move stick to the polar position.
func EncodeJoystick(stick domain.Stick, angle, radius float64) ([]byte, error) {
	prefix, ok := stickPrefixes[stick]
	if !ok {
		return nil, fmt.Errorf("%w: joystick %q", ErrUnknownCommand, stick)
	}
	if math.IsNaN(radius) || radius < 0 || radius > 1 {
		return nil, fmt.Errorf("%w: radius %v outside [0, 1]", ErrUnknownCommand, radius)
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil, fmt.Errorf("%w: angle %v", ErrUnknownCommand, angle)
	}

	x, y := PolarToCartesian(angle, radius)
	return append([]byte(prefix), byte(math.Round(x)), byte(math.Round(y))), nil
}

// IsKnownCommand reports whether cmd is a button code or starts with a stick prefix.
func IsKnownCommand(cmd []byte) bool {
	s := string(cmd)
	for _, code := range buttonCodes {
		if s == code {
			return true
		}
	}
	for _, prefix := range stickPrefixes {
		if len(s) == len(prefix)+2 && s[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

var errEmptyReply = errors.New("no reply from controller")
