package device

import "errors"

var (
	// ErrDeviceNotFound is returned when no device owns a handle.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidHandle is returned for handles outside [1,254].
	ErrInvalidHandle = errors.New("device: invalid handle")

	// ErrInvalidKind is returned for an unknown Kind.
	ErrInvalidKind = errors.New("device: invalid kind")

	// ErrInvalidName is returned when a name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidLevel is returned for a level the device cannot take.
	ErrInvalidLevel = errors.New("device: invalid level")

	// ErrInvalidCommand is returned for an unknown command action.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrNoCommandHandler is returned when commands arrive before a bridge is attached.
	ErrNoCommandHandler = errors.New("device: no command handler")
)
