package device

import "time"

// Device is a Zigbee end device known to the gateway.
// This matches the devices table in migrations/20260301_090000_devices.up.sql.
type Device struct {
	// IEEEAddress is the 64-bit hardware address, lower-case hex with a 0x
	// prefix, e.g. "0x000b57fffec6a5b2".
	IEEEAddress string `json:"ieee_address"`

	// FriendlyName is the MQTT-facing name. It may contain '/' to group
	// devices, e.g. "kitchen/ceiling".
	FriendlyName string `json:"friendly_name"`

	// ModelID is the Zigbee basic cluster modelId reported by the device.
	ModelID      string `json:"model_id"`
	Manufacturer string `json:"manufacturer,omitempty"`

	// Retain publishes this device's state with the MQTT retain flag.
	Retain bool `json:"retain"`

	// State is the last-known state, including optimistic echoes.
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State holds device state as published on MQTT, e.g. {"state": "ON", "brightness": 200}.
type State map[string]any

// Name returns the friendly name, falling back to the IEEE address.
func (d *Device) Name() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.IEEEAddress
}

// DeepCopy creates an independent copy of the Device so cached entries
// cannot be mutated through returned values.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.State = State(deepCopyMap(d.State))
	if d.StateUpdatedAt != nil {
		t := *d.StateUpdatedAt
		cpy.StateUpdatedAt = &t
	}
	return &cpy
}

// Merge returns a copy of s with patch applied on top.
func (s State) Merge(patch map[string]any) State {
	out := make(State, len(s)+len(patch))
	for k, v := range s {
		out[k] = deepCopyValue(v)
	}
	for k, v := range patch {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case State:
		return State(deepCopyMap(val))
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
