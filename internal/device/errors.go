package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device matches an address or name.
	ErrDeviceNotFound = errors.New("device: not found")

	ErrInvalidDevice  = errors.New("device: invalid")
	ErrInvalidAddress = errors.New("device: invalid IEEE address")
	ErrInvalidName    = errors.New("device: invalid friendly name")

	// ErrNameConflict is returned when a friendly name is already used by
	// another device.
	ErrNameConflict = errors.New("device: friendly name already in use")
)
