package converters

import "errors"

var (
	// ErrInvalidModel is returned when a definition lacks required fields.
	ErrInvalidModel = errors.New("converters: invalid model definition")

	// ErrDuplicateModel is returned when a Zigbee model ID is registered twice.
	ErrDuplicateModel = errors.New("converters: duplicate zigbee model")

	// ErrUnknownModel is returned when an alias target does not exist.
	ErrUnknownModel = errors.New("converters: unknown model")

	// ErrInvalidAlias is returned for malformed alias entries.
	ErrInvalidAlias = errors.New("converters: invalid alias")
)
