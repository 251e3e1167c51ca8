package domain

import (
	"context"
	"errors"
)

var (
	// ErrProgramNotFound is returned when a start request names no loaded program.
	ErrProgramNotFound = errors.New("program not found")

	// ErrInvalidOption is returned for unknown option names and mismatched values.
	ErrInvalidOption = errors.New("invalid option")

	// ErrInvalidProgram is returned when a program declares invalid metadata.
	ErrInvalidProgram = errors.New("invalid program definition")

	// ErrInvalidDialog is returned when a dialog offers no usable answers.
	ErrInvalidDialog = errors.New("invalid dialog")

	// ErrDialogPending is returned when a program asks while a question is outstanding.
	ErrDialogPending = errors.New("a dialog is already pending")

	// ErrDialogCancelled is returned to a suspended Ask whose session went away.
	ErrDialogCancelled = errors.New("dialog cancelled")

	// ErrNotRunning is returned for requests that need a running program.
	ErrNotRunning = errors.New("no program is running")

	// ErrConsoleBusy is returned when another process holds the console lease.
	ErrConsoleBusy = errors.New("console is in use by another host")

	// ErrRoutineFault marks an uncaught failure inside a running program.
	ErrRoutineFault = errors.New("program fault")

	// ErrPeripheral marks device level failures (not connected, IO errors).
	ErrPeripheral = errors.New("peripheral error")

	// ErrProtocol marks malformed client messages.
	ErrProtocol = errors.New("protocol error")
)

// ErrorKind groups errors by who is responsible for them.
type ErrorKind string

const (
	KindUser       ErrorKind = "user_error"
	KindPeripheral ErrorKind = "peripheral_error"
	KindRoutine    ErrorKind = "routine_fault"
	KindProtocol   ErrorKind = "protocol_error"
	KindInternal   ErrorKind = "internal_error"
)

// Kind classifies err for acknowledgments and logs.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	case errors.Is(err, ErrProgramNotFound),
		errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrNotRunning),
		errors.Is(err, ErrConsoleBusy):
		return KindUser
	case errors.Is(err, ErrPeripheral):
		return KindPeripheral
	case errors.Is(err, ErrRoutineFault),
		errors.Is(err, ErrInvalidDialog),
		errors.Is(err, ErrDialogPending):
		return KindRoutine
	case errors.Is(err, context.Canceled):
		return KindUser
	default:
		return KindInternal
	}
}
