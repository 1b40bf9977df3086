package converters

// Kind selects between writing a value to a device and reading it back.
type Kind string

const (
	// KindSet writes a value.
	KindSet Kind = "set"

	// KindGet requests a read of the attribute behind a key.
	KindGet Kind = "get"
)

// ParseKind maps a topic segment to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindSet, KindGet:
		return Kind(s), true
	default:
		return "", false
	}
}

// CommandType distinguishes cluster-specific commands from global ones.
type CommandType string

const (
	// Functional commands are defined by the cluster (on, moveToLevel, ...).
	Functional CommandType = "functional"

	// Foundation commands are global to every cluster (read, write, ...).
	Foundation CommandType = "foundation"
)

// DefaultEndpoint is used when a model has no endpoint for a qualifier.
const DefaultEndpoint uint8 = 1

// Values gives converters read access to the whole decoded message, so a
// converter can pick up companion keys such as "transition".
type Values interface {
	Get(key string) (any, bool)
}

// CommandConfig holds per-command transport options.
type CommandConfig struct {
	DisableDefaultResponse bool `json:"disable_default_response,omitempty" yaml:"disable_default_response"`
}

// Command describes one Zigbee command to send. The device and endpoint are
// attached later by the caller.
type Command struct {
	Cluster string         `json:"cluster"`
	Command string         `json:"command"`
	Type    CommandType    `json:"command_type"`
	Payload map[string]any `json:"payload"`
	Config  *CommandConfig `json:"config,omitempty"`
}

// Converter turns the value of one message key into a Command.
type Converter interface {
	// Key is the message key this converter handles, e.g. "brightness".
	Key() string

	// Convert returns false when the value does not produce a command. This
	// is not an error: the key is skipped silently.
	Convert(value any, msg Values, kind Kind) (Command, bool)
}

// Model is a device definition: which Zigbee model IDs it covers, how its
// qualifiers map to endpoints, and which keys it accepts.
type Model struct {
	ZigbeeModel []string
	Model       string
	Vendor      string
	Description string

	// Endpoints maps qualifiers such as "left" to endpoint numbers.
	Endpoints map[string]uint8

	ToZigbee []Converter
}

// Endpoint returns the endpoint for a qualifier. The second value is false
// when the qualifier has no mapping and the default endpoint was returned.
func (m *Model) Endpoint(qualifier string) (uint8, bool) {
	if qualifier != "" {
		if ep, ok := m.Endpoints[qualifier]; ok {
			return ep, true
		}
	}
	if ep, ok := m.Endpoints["default"]; ok {
		return ep, qualifier == ""
	}
	return DefaultEndpoint, qualifier == ""
}

// FindConverter returns the converter registered for key.
func (m *Model) FindConverter(key string) (Converter, bool) {
	for _, c := range m.ToZigbee {
		if c.Key() == key {
			return c, true
		}
	}
	return nil, false
}

// Keys lists the keys the model accepts, in declaration order.
func (m *Model) Keys() []string {
	keys := make([]string, 0, len(m.ToZigbee))
	for _, c := range m.ToZigbee {
		keys = append(keys, c.Key())
	}
	return keys
}
