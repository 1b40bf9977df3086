package mqtt

import (
	"fmt"
	"strings"
)

// DefaultBaseTopic is used when no base topic is configured.
const DefaultBaseTopic = "zigbee2mqtt"

// Topics provides builders for the gateway's MQTT topics.
// All topics live under a configurable base, e.g. "zigbee2mqtt".
//
//	topics := mqtt.NewTopics("zigbee2mqtt")
//	topics.DeviceState("kitchen_light") // "zigbee2mqtt/kitchen_light"
type Topics struct {
	Base string
}

// NewTopics returns a builder for base. Trailing slashes are removed.
func NewTopics(base string) Topics {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultBaseTopic
	}
	return Topics{Base: base}
}

// DeviceState returns the state topic for a device.
//
// Example: zigbee2mqtt/kitchen_light
func (t Topics) DeviceState(friendlyName string) string {
	return fmt.Sprintf("%s/%s", t.Base, friendlyName)
}

// DeviceSet returns the command topic for a device, optionally qualified by
// a sub-endpoint.
//
// Example: zigbee2mqtt/wall_switch/left/set
func (t Topics) DeviceSet(friendlyName, subEndpoint string) string {
	if subEndpoint == "" {
		return fmt.Sprintf("%s/%s/set", t.Base, friendlyName)
	}
	return fmt.Sprintf("%s/%s/%s/set", t.Base, friendlyName, subEndpoint)
}

// BridgeState returns the availability topic.
//
// Example: zigbee2mqtt/bridge/state
func (t Topics) BridgeState() string {
	return t.Base + "/bridge/state"
}

// BridgeHealth returns the health report topic.
//
// Example: zigbee2mqtt/bridge/health
func (t Topics) BridgeHealth() string {
	return t.Base + "/bridge/health"
}

// CommandWildcards returns the subscription patterns for command topics
// whose device selector is 1 to maxDepth segments deep, for both set and get.
//
// Pattern (depth 2): zigbee2mqtt/+/+/set, zigbee2mqtt/+/+/get
func (t Topics) CommandWildcards(maxDepth int) []string {
	if maxDepth < 1 {
		return nil
	}
	patterns := make([]string, 0, maxDepth*2)
	for depth := 1; depth <= maxDepth; depth++ {
		prefix := t.Base + "/" + strings.Repeat("+/", depth)
		patterns = append(patterns, prefix+"set", prefix+"get")
	}
	return patterns
}

// CoordinatorRequest returns the request topic for a coordinator call.
//
// Example: graylogic/zigbee/coordinator/request/6f1c...
func CoordinatorRequest(prefix, requestID string) string {
	return fmt.Sprintf("%s/request/%s", prefix, requestID)
}

// CoordinatorResponses returns the pattern matching all coordinator responses.
//
// Pattern: graylogic/zigbee/coordinator/response/+
func CoordinatorResponses(prefix string) string {
	return prefix + "/response/+"
}
