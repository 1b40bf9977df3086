package zigbee

import "errors"

// Domain errors for the Zigbee bridge package.
var (
	// ErrUnknownDevice is returned when a topic selector matches no device.
	ErrUnknownDevice = errors.New("zigbee: unknown device")

	// ErrUnsupportedModel is returned when a device's model has no definition.
	ErrUnsupportedModel = errors.New("zigbee: unsupported device model")

	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("zigbee: command queue full")

	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("zigbee: command queue stopped")

	// ErrNotConnected is returned when the coordinator link is down.
	ErrNotConnected = errors.New("zigbee: not connected")

	// ErrTimeout is returned when the coordinator does not answer in time.
	ErrTimeout = errors.New("zigbee: request timed out")

	// ErrCommandFailed is returned when the coordinator reports a failure.
	ErrCommandFailed = errors.New("zigbee: command failed")
)
