package zigbee

import (
	"strings"

	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
)

// echoRule maps a successfully sent key to the optimistic state it implies.
// Devices do not always report on/off changes, so the gateway publishes the
// expected state itself.
type echoRule struct {
	match func(key string) bool
	value func(msg Message) (any, bool)
}

// echoRules is evaluated in order; the first matching rule wins.
var echoRules = []echoRule{
	{
		// Setting a brightness turns the light on.
		match: func(key string) bool { return key == "brightness" },
		value: func(Message) (any, bool) { return "ON", true },
	},
	{
		match: func(key string) bool { return strings.HasPrefix(key, "state") },
		value: func(msg Message) (any, bool) { return msg.Get("state") },
	},
}

// EchoFields returns the optimistic state update for a command that
// succeeded, or false when nothing should be published. Only set commands
// echo. The field is "state", or "state_<qualifier>" for sub-endpoints.
func EchoFields(kind converters.Kind, key, subEndpoint string, msg Message) (map[string]any, bool) {
	if kind != converters.KindSet {
		return nil, false
	}
	for _, rule := range echoRules {
		if !rule.match(key) {
			continue
		}
		v, ok := rule.value(msg)
		if !ok {
			return nil, false
		}
		return map[string]any{echoField(subEndpoint): v}, true
	}
	return nil, false
}

func echoField(subEndpoint string) string {
	if subEndpoint == "" {
		return "state"
	}
	return "state_" + subEndpoint
}
